package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"breakout-optimizer/config"
	"breakout-optimizer/internal/database"
	"breakout-optimizer/internal/logging"
	"breakout-optimizer/internal/marketdata"
	"breakout-optimizer/internal/optimizer"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	repo := database.NewRepository(db)

	var cache optimizer.SummaryCache
	if cfg.Redis.Enabled {
		runCache, err := database.NewRunCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, run summaries will not be cached")
		} else {
			defer runCache.Close()
			cache = runCache
		}
	}

	client := marketdata.NewClient(cfg.Market.BaseURL)
	log.Info().
		Str("symbol", cfg.Market.Symbol).
		Str("interval", cfg.Market.Interval).
		Int("limit", cfg.Market.Limit).
		Msg("fetching candles")
	s, err := client.GetKlines(cfg.Market.Symbol, cfg.Market.Interval, cfg.Market.Limit)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load price series")
	}

	runner := optimizer.NewRunner(repo, cache, optimizerConfig(cfg.Optimizer), log)
	summary, err := runner.Run(ctx, s)
	if err != nil {
		log.Fatal().Err(err).Msg("optimization run failed")
	}

	signals, err := optimizer.ApplySignals(s, summary.Detection.Params, summary.Range.Params, summary.Breakout.Params)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to apply winning parameters")
	}
	log.Info().Int("signals", len(signals)).Msg("winning parameters replayed over series")

	out, _ := json.MarshalIndent(summary, "", "  ")
	os.Stdout.Write(append(out, '\n'))
}

// optimizerConfig maps file/env configuration onto the runner's config,
// falling back to the built-in grids where none were supplied.
func optimizerConfig(cfg config.OptimizerConfig) optimizer.Config {
	oc := optimizer.DefaultConfig()
	oc.MaxCombinations = cfg.MaxCombinations
	oc.Workers = cfg.WorkerCount
	oc.KeyFractionTarget = cfg.KeyFractionTarget
	oc.CoverageTarget = cfg.CoverageTarget
	oc.CoverageHorizon = cfg.CoverageHorizon
	oc.ValidWeight = cfg.ValidWeight
	oc.ProfitWeight = cfg.ProfitWeight
	oc.ProfitHorizon = cfg.ProfitHorizon

	if len(cfg.VolumePercentileThresholds) > 0 {
		oc.Grids.VolumePercentileThresholds = cfg.VolumePercentileThresholds
	}
	if len(cfg.BodyPercentageThresholds) > 0 {
		oc.Grids.BodyPercentageThresholds = cfg.BodyPercentageThresholds
	}
	if len(cfg.LookbackCandles) > 0 {
		oc.Grids.LookbackCandles = cfg.LookbackCandles
	}
	if len(cfg.ATRPeriods) > 0 {
		oc.Grids.ATRPeriods = cfg.ATRPeriods
	}
	if len(cfg.ATRMultipliers) > 0 {
		oc.Grids.ATRMultipliers = cfg.ATRMultipliers
	}
	if len(cfg.BreakoutThresholds) > 0 {
		oc.Grids.BreakoutThresholds = cfg.BreakoutThresholds
	}
	if len(cfg.MaxCandlesToReturn) > 0 {
		oc.Grids.MaxCandlesToReturn = cfg.MaxCandlesToReturn
	}
	return oc
}

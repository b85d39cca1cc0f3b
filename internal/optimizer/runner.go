package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"breakout-optimizer/internal/breakout"
	"breakout-optimizer/internal/detection"
	"breakout-optimizer/internal/gridsearch"
	"breakout-optimizer/internal/ranges"
	"breakout-optimizer/internal/series"
)

// Store is the append-only result store a run writes its winners to.
// The ID maps returned by the save methods key result row IDs by result
// timestamp, so downstream stages can reference their upstream rows.
type Store interface {
	SaveDetectionStage(ctx context.Context, symbol string, p detection.Params, score float64, results []detection.Result) (paramID int64, resultIDs map[int64]int64, err error)
	SaveRangeStage(ctx context.Context, symbol string, p ranges.Params, score float64, results []ranges.Result, detectionIDs map[int64]int64) (paramID int64, resultIDs map[int64]int64, err error)
	SaveBreakoutStage(ctx context.Context, symbol string, p breakout.Params, score float64, results []breakout.Result, rangeIDs map[int64]int64) (paramID int64, err error)
	SaveRunSummary(ctx context.Context, summary *RunSummary) error
}

// SummaryCache is an optional fast-path for the latest run summary.
// Failures are logged, never fatal; the durable store is authoritative.
type SummaryCache interface {
	StoreLatest(ctx context.Context, summary *RunSummary) error
}

// Runner executes the full detection → range → breakout optimization.
type Runner struct {
	store Store
	cache SummaryCache
	cfg   Config
	log   zerolog.Logger
}

// NewRunner wires a runner. cache may be nil.
func NewRunner(store Store, cache SummaryCache, cfg Config, log zerolog.Logger) *Runner {
	return &Runner{
		store: store,
		cache: cache,
		cfg:   cfg,
		log:   log.With().Str("component", "optimizer").Logger(),
	}
}

type detectionPayload struct {
	results  []detection.Result
	fraction float64
}

type rangePayload struct {
	results  []ranges.Result
	coverage float64
}

type breakoutPayload struct {
	results []breakout.Result
	stats   breakout.Stats
}

// Run validates the series, sweeps the three stages in order and persists
// each stage's winning parameters and result set. It returns a summary of
// the whole run, or halts at the first fatal error with the failing stage
// in the error chain.
func (r *Runner) Run(ctx context.Context, s series.Series) (*RunSummary, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating series: %w", err)
	}

	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Symbol:    s.Symbol,
		StartedAt: time.Now().UTC(),
	}
	log := r.log.With().Str("run_id", summary.RunID).Str("symbol", s.Symbol).Logger()
	log.Info().Int("bars", s.Len()).Msg("starting optimization run")

	opts := gridsearch.Options{MaxCombinations: r.cfg.MaxCombinations, Workers: r.cfg.Workers}
	bars := s.Bars

	// Stage 1: detection.
	detAxes := []gridsearch.Axis{
		{Name: "volume_percentile_threshold", Values: r.cfg.Grids.VolumePercentileThresholds},
		{Name: "body_percentage_threshold", Values: r.cfg.Grids.BodyPercentageThresholds},
		{Name: "lookback_candles", Values: r.cfg.Grids.LookbackCandles},
	}
	detWin, err := gridsearch.Run(ctx, detAxes, func(ctx context.Context, c gridsearch.Combination) (float64, detectionPayload, error) {
		p := detectionParamsFrom(c)
		results, err := detection.Evaluate(bars, p)
		if err != nil {
			return 0, detectionPayload{}, err
		}
		fraction, score, err := detection.Score(results, r.cfg.KeyFractionTarget)
		if err != nil {
			return 0, detectionPayload{}, err
		}
		return score, detectionPayload{results: results, fraction: fraction}, nil
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s stage: %w", StageDetection, err)
	}

	detParams := detectionParamsFrom(detWin.Combination)
	keyIndices := detection.KeyIndices(detWin.Payload.results)
	log.Info().
		Float64("score", detWin.Score).
		Float64("key_fraction", detWin.Payload.fraction).
		Int("key_candles", len(keyIndices)).
		Int("evaluated", detWin.Evaluated).
		Int("failed", detWin.Failed).
		Interface("params", detParams).
		Msg("detection stage complete")

	detParamID, detIDs, err := r.store.SaveDetectionStage(ctx, s.Symbol, detParams, detWin.Score, detWin.Payload.results)
	if err != nil {
		return nil, fmt.Errorf("%s stage: persisting winner: %w", StageDetection, err)
	}
	summary.Detection = DetectionSummary{
		ParamID:     detParamID,
		Params:      detParams,
		Score:       detWin.Score,
		KeyFraction: detWin.Payload.fraction,
		KeyCandles:  len(keyIndices),
		Evaluated:   detWin.Evaluated,
		Failed:      detWin.Failed,
	}

	// Stage 2: range.
	rangeAxes := []gridsearch.Axis{
		{Name: "atr_period", Values: r.cfg.Grids.ATRPeriods},
		{Name: "atr_multiplier", Values: r.cfg.Grids.ATRMultipliers},
	}
	rangeWin, err := gridsearch.Run(ctx, rangeAxes, func(ctx context.Context, c gridsearch.Combination) (float64, rangePayload, error) {
		p := rangeParamsFrom(c)
		results, err := ranges.Compute(bars, keyIndices, p)
		if err != nil {
			return 0, rangePayload{}, err
		}
		coverage, score, err := ranges.Score(bars, results, r.cfg.CoverageHorizon, r.cfg.CoverageTarget)
		if err != nil {
			return 0, rangePayload{}, err
		}
		return score, rangePayload{results: results, coverage: coverage}, nil
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s stage: %w", StageRange, err)
	}

	rangeParams := rangeParamsFrom(rangeWin.Combination)
	log.Info().
		Float64("score", rangeWin.Score).
		Float64("coverage", rangeWin.Payload.coverage).
		Int("ranges", len(rangeWin.Payload.results)).
		Int("evaluated", rangeWin.Evaluated).
		Int("failed", rangeWin.Failed).
		Interface("params", rangeParams).
		Msg("range stage complete")

	if err := assertRangeLineage(rangeWin.Payload.results, detIDs); err != nil {
		return nil, fmt.Errorf("%s stage: %w", StageRange, err)
	}
	rangeParamID, rangeIDs, err := r.store.SaveRangeStage(ctx, s.Symbol, rangeParams, rangeWin.Score, rangeWin.Payload.results, detIDs)
	if err != nil {
		return nil, fmt.Errorf("%s stage: persisting winner: %w", StageRange, err)
	}
	summary.Range = RangeSummary{
		ParamID:   rangeParamID,
		Params:    rangeParams,
		Score:     rangeWin.Score,
		Coverage:  rangeWin.Payload.coverage,
		Ranges:    len(rangeWin.Payload.results),
		Evaluated: rangeWin.Evaluated,
		Failed:    rangeWin.Failed,
	}

	// Stage 3: breakout.
	scoreCfg := breakout.ScoreConfig{
		ValidWeight:  r.cfg.ValidWeight,
		ProfitWeight: r.cfg.ProfitWeight,
		Profitable:   breakout.DefaultProfitRule(r.cfg.ProfitHorizon),
	}
	winningRanges := rangeWin.Payload.results
	breakoutAxes := []gridsearch.Axis{
		{Name: "breakout_threshold_percentage", Values: r.cfg.Grids.BreakoutThresholds},
		{Name: "max_candles_to_return", Values: r.cfg.Grids.MaxCandlesToReturn},
	}
	breakoutWin, err := gridsearch.Run(ctx, breakoutAxes, func(ctx context.Context, c gridsearch.Combination) (float64, breakoutPayload, error) {
		p := breakoutParamsFrom(c)
		results, err := breakout.Evaluate(bars, winningRanges, p)
		if err != nil {
			return 0, breakoutPayload{}, err
		}
		stats, score, err := breakout.Score(bars, results, scoreCfg)
		if err != nil {
			return 0, breakoutPayload{}, err
		}
		return score, breakoutPayload{results: results, stats: stats}, nil
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s stage: %w", StageBreakout, err)
	}

	breakoutParams := breakoutParamsFrom(breakoutWin.Combination)
	log.Info().
		Float64("score", breakoutWin.Score).
		Float64("valid_ratio", breakoutWin.Payload.stats.ValidRatio).
		Float64("profit_ratio", breakoutWin.Payload.stats.ProfitRatio).
		Int("evaluated", breakoutWin.Evaluated).
		Int("failed", breakoutWin.Failed).
		Interface("params", breakoutParams).
		Msg("breakout stage complete")

	if err := assertBreakoutLineage(breakoutWin.Payload.results, rangeIDs); err != nil {
		return nil, fmt.Errorf("%s stage: %w", StageBreakout, err)
	}
	breakoutParamID, err := r.store.SaveBreakoutStage(ctx, s.Symbol, breakoutParams, breakoutWin.Score, breakoutWin.Payload.results, rangeIDs)
	if err != nil {
		return nil, fmt.Errorf("%s stage: persisting winner: %w", StageBreakout, err)
	}
	summary.Breakout = BreakoutSummary{
		ParamID:   breakoutParamID,
		Params:    breakoutParams,
		Score:     breakoutWin.Score,
		Stats:     breakoutWin.Payload.stats,
		Evaluated: breakoutWin.Evaluated,
		Failed:    breakoutWin.Failed,
	}

	summary.CompletedAt = time.Now().UTC()
	if err := r.store.SaveRunSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("persisting run summary: %w", err)
	}
	if r.cache != nil {
		if err := r.cache.StoreLatest(ctx, summary); err != nil {
			log.Warn().Err(err).Msg("caching run summary failed")
		}
	}

	log.Info().
		Dur("duration", summary.CompletedAt.Sub(summary.StartedAt)).
		Msg("optimization run complete")
	return summary, nil
}

// assertRangeLineage verifies every range result anchors at a persisted
// detection row. A miss is a driver bug, not recoverable input.
func assertRangeLineage(results []ranges.Result, detectionIDs map[int64]int64) error {
	for _, r := range results {
		if _, ok := detectionIDs[r.Timestamp]; !ok {
			return fmt.Errorf("%w: range at ts %d references no detection row", ErrLineageViolation, r.Timestamp)
		}
	}
	return nil
}

// assertBreakoutLineage verifies every breakout result evaluates a
// persisted range row.
func assertBreakoutLineage(results []breakout.Result, rangeIDs map[int64]int64) error {
	for _, r := range results {
		if _, ok := rangeIDs[r.RangeTimestamp]; !ok {
			return fmt.Errorf("%w: breakout at ts %d references no range row", ErrLineageViolation, r.RangeTimestamp)
		}
	}
	return nil
}

func detectionParamsFrom(c gridsearch.Combination) detection.Params {
	return detection.Params{
		VolumePercentileThreshold: c.Float("volume_percentile_threshold"),
		BodyPercentageThreshold:   c.Float("body_percentage_threshold"),
		LookbackCandles:           c.Int("lookback_candles"),
	}
}

func rangeParamsFrom(c gridsearch.Combination) ranges.Params {
	return ranges.Params{
		ATRPeriod:     c.Int("atr_period"),
		ATRMultiplier: c.Float("atr_multiplier"),
	}
}

func breakoutParamsFrom(c gridsearch.Combination) breakout.Params {
	return breakout.Params{
		BreakoutThresholdPercentage: c.Float("breakout_threshold_percentage"),
		MaxCandlesToReturn:          c.Int("max_candles_to_return"),
	}
}

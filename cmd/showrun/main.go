// showrun prints a persisted optimization run: the winning parameters and
// scores per stage, plus the sizes of the stored result sets. With no run
// on record it falls back to the active parameter rows.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"breakout-optimizer/config"
	"breakout-optimizer/internal/database"
	"breakout-optimizer/internal/optimizer"
)

func main() {
	runID := flag.String("run", "", "run id to show (default: latest run for -symbol)")
	symbol := flag.String("symbol", "", "symbol whose latest run to show (default: configured symbol)")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatalf("failed to load config: %v", err)
	}
	if *symbol == "" {
		*symbol = cfg.Market.Symbol
	}

	ctx := context.Background()

	// The cache holds the latest summary per symbol; a specific -run always
	// goes to Postgres.
	if *runID == "" && cfg.Redis.Enabled {
		if cache, err := database.NewRunCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err == nil {
			summary, err := cache.GetLatest(ctx, *symbol)
			cache.Close()
			if err == nil && summary != nil {
				printSummary(summary)
				fmt.Println("\n(served from cache; use -run to read the store)")
				return
			}
		}
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	repo := database.NewRepository(db)

	var summary *optimizer.RunSummary
	if *runID != "" {
		summary, err = repo.GetRunSummary(ctx, *runID)
	} else {
		summary, err = repo.GetLatestRunSummary(ctx, *symbol)
	}
	if err != nil {
		fatalf("failed to load run: %v", err)
	}
	if summary == nil {
		showActiveParams(ctx, repo)
		return
	}

	keyCandles, err := repo.GetDetectionResults(ctx, summary.Detection.ParamID, true)
	if err != nil {
		fatalf("failed to load detection results: %v", err)
	}
	rangeRows, err := repo.GetRangeResults(ctx, summary.Range.ParamID)
	if err != nil {
		fatalf("failed to load range results: %v", err)
	}
	breakoutRows, err := repo.GetBreakoutResults(ctx, summary.Breakout.ParamID)
	if err != nil {
		fatalf("failed to load breakout results: %v", err)
	}

	printSummary(summary)

	valid := 0
	for _, b := range breakoutRows {
		if b.IsValid {
			valid++
		}
	}
	fmt.Printf("\nstored rows: %d key candles, %d ranges, %d breakouts (%d valid)\n",
		len(keyCandles), len(rangeRows), len(breakoutRows), valid)
}

// showActiveParams covers the pre-summary case: stages optimized before
// run summaries existed, or a partial manual cleanup.
func showActiveParams(ctx context.Context, repo *database.Repository) {
	det, err := repo.GetActiveDetectionParams(ctx)
	if err != nil {
		fatalf("failed to load active detection params: %v", err)
	}
	rng, err := repo.GetActiveRangeParams(ctx)
	if err != nil {
		fatalf("failed to load active range params: %v", err)
	}
	brk, err := repo.GetActiveBreakoutParams(ctx)
	if err != nil {
		fatalf("failed to load active breakout params: %v", err)
	}
	if det == nil && rng == nil && brk == nil {
		fatalf("no optimization run found")
	}

	fmt.Println("no run summary on record; active parameter rows:")
	printJSON(map[string]interface{}{
		"detection": det,
		"range":     rng,
		"breakout":  brk,
	})
}

func printSummary(summary *optimizer.RunSummary) {
	printJSON(summary)
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

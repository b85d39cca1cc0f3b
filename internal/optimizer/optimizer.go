// Package optimizer chains the three grid-searched stages (key-candle
// detection, ATR range construction, breakout evaluation) into one
// sequential run. Each stage's winning parameter set feeds the next stage
// explicitly; nothing is read from ambient state.
package optimizer

import (
	"errors"
	"time"

	"breakout-optimizer/internal/breakout"
	"breakout-optimizer/internal/detection"
	"breakout-optimizer/internal/gridsearch"
	"breakout-optimizer/internal/ranges"
)

// ErrLineageViolation means a result row was about to reference an
// upstream row that does not exist in this run. It indicates a driver bug
// and aborts the run.
var ErrLineageViolation = errors.New("lineage violation")

// Stage names fatal errors so a failed run points at the stage that broke.
type Stage string

const (
	StageDetection Stage = "detection"
	StageRange     Stage = "range"
	StageBreakout  Stage = "breakout"
)

// Grids are the discrete candidate lists swept per stage. The defaults
// mirror the grids the system has always searched; all are overridable
// through configuration.
type Grids struct {
	VolumePercentileThresholds []float64 `json:"volume_percentile_thresholds"`
	BodyPercentageThresholds   []float64 `json:"body_percentage_thresholds"`
	LookbackCandles            []float64 `json:"lookback_candles"`
	ATRPeriods                 []float64 `json:"atr_periods"`
	ATRMultipliers             []float64 `json:"atr_multipliers"`
	BreakoutThresholds         []float64 `json:"breakout_thresholds"`
	MaxCandlesToReturn         []float64 `json:"max_candles_to_return"`
}

// DefaultGrids returns the standard sweep space.
func DefaultGrids() Grids {
	return Grids{
		VolumePercentileThresholds: gridsearch.Linspace(70, 95, 6),
		BodyPercentageThresholds:   gridsearch.Linspace(20, 50, 6),
		LookbackCandles:            []float64{20, 30, 50, 70, 100},
		ATRPeriods:                 []float64{5, 7, 10, 14, 21, 28},
		ATRMultipliers:             gridsearch.Linspace(0.5, 3.0, 10),
		BreakoutThresholds:         gridsearch.Linspace(0.1, 2.0, 10),
		MaxCandlesToReturn:         []float64{1, 2, 3, 5, 7},
	}
}

// Config tunes one optimization run.
type Config struct {
	Grids             Grids   `json:"grids"`
	MaxCombinations   int     `json:"max_combinations"`
	Workers           int     `json:"workers"`
	KeyFractionTarget float64 `json:"key_fraction_target"`
	CoverageTarget    float64 `json:"coverage_target"`
	CoverageHorizon   int     `json:"coverage_horizon"`
	ValidWeight       float64 `json:"valid_weight"`
	ProfitWeight      float64 `json:"profit_weight"`
	ProfitHorizon     int     `json:"profit_horizon"`
}

// DefaultConfig returns the standard run configuration: 50-combination
// cap per stage, 10% key-candle target, 70% coverage target over a
// 10-bar horizon, and a 0.4/0.6 valid/profit weighting with a 5-bar
// profit horizon.
func DefaultConfig() Config {
	return Config{
		Grids:             DefaultGrids(),
		MaxCombinations:   50,
		KeyFractionTarget: 0.10,
		CoverageTarget:    0.70,
		CoverageHorizon:   10,
		ValidWeight:       0.4,
		ProfitWeight:      0.6,
		ProfitHorizon:     5,
	}
}

// DetectionSummary records the detection stage's winner.
type DetectionSummary struct {
	ParamID     int64            `json:"param_id"`
	Params      detection.Params `json:"params"`
	Score       float64          `json:"score"`
	KeyFraction float64          `json:"key_fraction"`
	KeyCandles  int              `json:"key_candles"`
	Evaluated   int              `json:"evaluated"`
	Failed      int              `json:"failed"`
}

// RangeSummary records the range stage's winner.
type RangeSummary struct {
	ParamID   int64         `json:"param_id"`
	Params    ranges.Params `json:"params"`
	Score     float64       `json:"score"`
	Coverage  float64       `json:"coverage"`
	Ranges    int           `json:"ranges"`
	Evaluated int           `json:"evaluated"`
	Failed    int           `json:"failed"`
}

// BreakoutSummary records the breakout stage's winner.
type BreakoutSummary struct {
	ParamID   int64           `json:"param_id"`
	Params    breakout.Params `json:"params"`
	Score     float64         `json:"score"`
	Stats     breakout.Stats  `json:"stats"`
	Evaluated int             `json:"evaluated"`
	Failed    int             `json:"failed"`
}

// RunSummary is the persisted snapshot of one full run: winning params and
// aggregate scores per stage, serializable for the reporting collaborators.
type RunSummary struct {
	RunID       string           `json:"run_id"`
	Symbol      string           `json:"symbol"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Detection   DetectionSummary `json:"detection"`
	Range       RangeSummary     `json:"range"`
	Breakout    BreakoutSummary  `json:"breakout"`
}

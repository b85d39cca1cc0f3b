package breakout

import (
	"fmt"

	"breakout-optimizer/internal/ranges"
	"breakout-optimizer/internal/series"
)

// Direction classifies how price escaped a range, if it did.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	None    Direction = "none"
)

// Params controls breakout detection on top of a computed range.
type Params struct {
	BreakoutThresholdPercentage float64 `json:"breakout_threshold_percentage"`
	MaxCandlesToReturn          int     `json:"max_candles_to_return"`
}

// Validate rejects non-positive parameter values.
func (p Params) Validate() error {
	if p.BreakoutThresholdPercentage <= 0 {
		return fmt.Errorf("breakout threshold must be positive, got %.4f", p.BreakoutThresholdPercentage)
	}
	if p.MaxCandlesToReturn <= 0 {
		return fmt.Errorf("max candles to return must be positive, got %d", p.MaxCandlesToReturn)
	}
	return nil
}

// Result is the breakout evaluation of one range. RangeTimestamp ties the
// row back to the range it evaluates. For a detected breakout Timestamp is
// the breakout bar's timestamp and BarIndex its series index; when no
// breakout occurred within the horizon they refer to the range's anchor,
// Direction is None and IsValid is false.
type Result struct {
	Timestamp          int64     `json:"timestamp"`
	RangeTimestamp     int64     `json:"range_timestamp"`
	BarIndex           int       `json:"bar_index"`
	Direction          Direction `json:"direction"`
	BreakoutPercentage float64   `json:"breakout_percentage"`
	IsValid            bool      `json:"is_valid"`
}

// Evaluate scans up to MaxCandlesToReturn bars after each range's anchor
// (stopping at series end) for the first close beyond the threshold-scaled
// limits: above upper*(1+thr/100) is bullish, below lower*(1-thr/100) is
// bearish. BreakoutPercentage is the signed deviation of that close from
// the nearer limit. Validity only records that an escape happened within
// the horizon; profitability is a separate derived metric.
func Evaluate(bars []series.Bar, rangeResults []ranges.Result, p Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rangeResults))
	for _, r := range rangeResults {
		res := Result{
			Timestamp:      r.Timestamp,
			RangeTimestamp: r.Timestamp,
			BarIndex:       r.BarIndex,
			Direction:      None,
		}
		upperTrigger := r.UpperLimit * (1 + p.BreakoutThresholdPercentage/100)
		lowerTrigger := r.LowerLimit * (1 - p.BreakoutThresholdPercentage/100)

		end := r.BarIndex + p.MaxCandlesToReturn
		if end > len(bars)-1 {
			end = len(bars) - 1
		}
		for i := r.BarIndex + 1; i <= end; i++ {
			c := bars[i].Close
			if c > upperTrigger {
				res.Timestamp = bars[i].Timestamp
				res.BarIndex = i
				res.Direction = Bullish
				res.BreakoutPercentage = (c - r.UpperLimit) / r.UpperLimit * 100
				res.IsValid = true
				break
			}
			if c < lowerTrigger {
				res.Timestamp = bars[i].Timestamp
				res.BarIndex = i
				res.Direction = Bearish
				res.BreakoutPercentage = (c - r.LowerLimit) / r.LowerLimit * 100
				res.IsValid = true
				break
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// ProfitRule decides whether a valid breakout went on to be profitable.
// The rule is injected so the optimizer can swap profitability definitions
// without touching the engine.
type ProfitRule func(bars []series.Bar, r Result) bool

// DefaultProfitRule marks a breakout profitable when the close `horizon`
// bars after the breakout bar (clamped to series end) continued in the
// breakout direction.
func DefaultProfitRule(horizon int) ProfitRule {
	return func(bars []series.Bar, r Result) bool {
		entry := bars[r.BarIndex].Close
		exitIdx := r.BarIndex + horizon
		if exitIdx > len(bars)-1 {
			exitIdx = len(bars) - 1
		}
		exit := bars[exitIdx].Close
		switch r.Direction {
		case Bullish:
			return exit > entry
		case Bearish:
			return exit < entry
		default:
			return false
		}
	}
}

// ScoreConfig is the caller-supplied weighting for the combined objective.
type ScoreConfig struct {
	ValidWeight  float64
	ProfitWeight float64
	Profitable   ProfitRule
}

// Stats are the aggregate counts behind a combined score.
type Stats struct {
	Total       int     `json:"total"`
	Valid       int     `json:"valid"`
	Profitable  int     `json:"profitable"`
	ValidRatio  float64 `json:"valid_ratio"`
	ProfitRatio float64 `json:"profit_ratio"`
}

// Score computes the combined objective: a weighted sum of the
// valid-breakout ratio and the profitable ratio among valid breakouts.
func Score(bars []series.Bar, results []Result, cfg ScoreConfig) (Stats, float64, error) {
	if len(results) == 0 {
		return Stats{}, 0, fmt.Errorf("%w: no breakout results to score", series.ErrInsufficientWindow)
	}
	if cfg.Profitable == nil {
		return Stats{}, 0, fmt.Errorf("profitability rule is required")
	}

	stats := Stats{Total: len(results)}
	for _, r := range results {
		if !r.IsValid {
			continue
		}
		stats.Valid++
		if cfg.Profitable(bars, r) {
			stats.Profitable++
		}
	}
	stats.ValidRatio = float64(stats.Valid) / float64(stats.Total)
	if stats.Valid > 0 {
		stats.ProfitRatio = float64(stats.Profitable) / float64(stats.Valid)
	}
	score := cfg.ValidWeight*stats.ValidRatio + cfg.ProfitWeight*stats.ProfitRatio
	return stats, score, nil
}

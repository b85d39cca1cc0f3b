package optimizer

import (
	"fmt"

	"breakout-optimizer/internal/breakout"
	"breakout-optimizer/internal/detection"
	"breakout-optimizer/internal/ranges"
	"breakout-optimizer/internal/series"
)

// Signal is one actionable breakout produced by replaying winning
// parameters over a series: a key candle, its range, and the first close
// that escaped it within the horizon.
type Signal struct {
	KeyTimestamp       int64              `json:"key_timestamp"`
	Timestamp          int64              `json:"timestamp"`
	Price              float64            `json:"price"`
	Direction          breakout.Direction `json:"direction"`
	BreakoutPercentage float64            `json:"breakout_percentage"`
	UpperLimit         float64            `json:"upper_limit"`
	LowerLimit         float64            `json:"lower_limit"`
}

// ApplySignals replays a winning parameter set over a series and returns
// the breakout signals it produces. Key candles without a defined ATR, or
// ranges that never break out within the horizon, yield no signal.
func ApplySignals(s series.Series, dp detection.Params, rp ranges.Params, bp breakout.Params) ([]Signal, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating series: %w", err)
	}

	detResults, err := detection.Evaluate(s.Bars, dp)
	if err != nil {
		return nil, fmt.Errorf("applying detection params: %w", err)
	}
	keyIndices := detection.KeyIndices(detResults)
	if len(keyIndices) == 0 {
		return nil, nil
	}

	rangeResults, err := ranges.Compute(s.Bars, keyIndices, rp)
	if err != nil {
		return nil, fmt.Errorf("applying range params: %w", err)
	}
	breakoutResults, err := breakout.Evaluate(s.Bars, rangeResults, bp)
	if err != nil {
		return nil, fmt.Errorf("applying breakout params: %w", err)
	}

	rangeByTimestamp := make(map[int64]ranges.Result, len(rangeResults))
	for _, r := range rangeResults {
		rangeByTimestamp[r.Timestamp] = r
	}

	var signals []Signal
	for _, b := range breakoutResults {
		if b.Direction == breakout.None {
			continue
		}
		r := rangeByTimestamp[b.RangeTimestamp]
		signals = append(signals, Signal{
			KeyTimestamp:       b.RangeTimestamp,
			Timestamp:          b.Timestamp,
			Price:              s.Bars[b.BarIndex].Close,
			Direction:          b.Direction,
			BreakoutPercentage: b.BreakoutPercentage,
			UpperLimit:         r.UpperLimit,
			LowerLimit:         r.LowerLimit,
		})
	}
	return signals, nil
}

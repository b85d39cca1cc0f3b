package detection

import (
	"fmt"

	"breakout-optimizer/internal/gridsearch"
	"breakout-optimizer/internal/series"
)

// Params controls key-candle classification. A candle is "key" when its
// volume ranks high within the trailing lookback window while its body is
// small relative to its range.
type Params struct {
	VolumePercentileThreshold float64 `json:"volume_percentile_threshold"` // 0-100
	BodyPercentageThreshold   float64 `json:"body_percentage_threshold"`   // 0-100
	LookbackCandles           int     `json:"lookback_candles"`
}

// Validate rejects parameter values outside their documented domains.
func (p Params) Validate() error {
	if p.VolumePercentileThreshold < 0 || p.VolumePercentileThreshold > 100 {
		return fmt.Errorf("volume percentile threshold %.2f out of range [0,100]", p.VolumePercentileThreshold)
	}
	if p.BodyPercentageThreshold < 0 || p.BodyPercentageThreshold > 100 {
		return fmt.Errorf("body percentage threshold %.2f out of range [0,100]", p.BodyPercentageThreshold)
	}
	if p.LookbackCandles <= 0 {
		return fmt.Errorf("lookback candles must be positive, got %d", p.LookbackCandles)
	}
	return nil
}

// Result is the classification of one bar under one parameter set.
// HasPercentile is false for bars before the lookback window has filled;
// those bars are never key.
type Result struct {
	Timestamp        int64   `json:"timestamp"`
	IsKeyCandle      bool    `json:"is_key_candle"`
	Volume           float64 `json:"volume"`
	BodyPercentage   float64 `json:"body_percentage"`
	VolumePercentile float64 `json:"volume_percentile"`
	HasPercentile    bool    `json:"has_percentile"`
}

// Evaluate classifies every bar of the series, in input order. The volume
// percentile of a bar is the fraction of bars in its trailing window
// (lookback bars ending at and including the bar itself) whose volume is
// less than or equal to its own, expressed 0-100.
func Evaluate(bars []series.Bar, p Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	results := make([]Result, len(bars))
	for i, b := range bars {
		r := Result{
			Timestamp:      b.Timestamp,
			Volume:         b.Volume,
			BodyPercentage: b.BodyPercentage(),
		}
		if i >= p.LookbackCandles-1 {
			r.HasPercentile = true
			r.VolumePercentile = volumePercentile(bars[i-p.LookbackCandles+1:i+1], b.Volume)
			r.IsKeyCandle = r.VolumePercentile >= p.VolumePercentileThreshold &&
				r.BodyPercentage <= p.BodyPercentageThreshold
		}
		results[i] = r
	}
	return results, nil
}

// volumePercentile ranks v within the window: fraction of window bars with
// volume <= v, scaled to 0-100. The window always contains the current bar,
// so the minimum rank is 100/len(window).
func volumePercentile(window []series.Bar, v float64) float64 {
	count := 0
	for _, b := range window {
		if b.Volume <= v {
			count++
		}
	}
	return float64(count) / float64(len(window)) * 100
}

// KeyIndices returns the bar indices flagged as key candles.
func KeyIndices(results []Result) []int {
	var indices []int
	for i, r := range results {
		if r.IsKeyCandle {
			indices = append(indices, i)
		}
	}
	return indices
}

// Score measures how close the observed key-candle fraction lands to the
// target fraction (e.g. 0.10): 1 - |observed-target|/target, clamped to
// [0,1]. Only bars with a defined percentile count toward the fraction.
// The exact observed fraction is returned alongside the score so callers
// can apply their own banding policy.
func Score(results []Result, target float64) (fraction, score float64, err error) {
	defined, key := 0, 0
	for _, r := range results {
		if !r.HasPercentile {
			continue
		}
		defined++
		if r.IsKeyCandle {
			key++
		}
	}
	if defined == 0 {
		return 0, 0, fmt.Errorf("%w: no bars with a defined volume percentile", series.ErrInsufficientWindow)
	}
	fraction = float64(key) / float64(defined)
	return fraction, gridsearch.Closeness(fraction, target), nil
}

package ranges

import (
	"fmt"

	"breakout-optimizer/internal/gridsearch"
	"breakout-optimizer/internal/indicator"
	"breakout-optimizer/internal/series"
)

// Params controls the volatility-scaled band built around a key candle.
type Params struct {
	ATRPeriod     int     `json:"atr_period"`
	ATRMultiplier float64 `json:"atr_multiplier"`
}

// Validate rejects non-positive parameter values.
func (p Params) Validate() error {
	if p.ATRPeriod <= 0 {
		return fmt.Errorf("atr period must be positive, got %d", p.ATRPeriod)
	}
	if p.ATRMultiplier <= 0 {
		return fmt.Errorf("atr multiplier must be positive, got %.4f", p.ATRMultiplier)
	}
	return nil
}

// Result is the price band anchored at one key candle. Timestamp is the
// key candle's timestamp, which ties the row back to the detection result
// that produced it; BarIndex locates the anchor in the source series for
// lookahead scans.
type Result struct {
	Timestamp      int64   `json:"timestamp"`
	BarIndex       int     `json:"bar_index"`
	ReferencePrice float64 `json:"reference_price"`
	UpperLimit     float64 `json:"upper_limit"`
	LowerLimit     float64 `json:"lower_limit"`
	ATRValue       float64 `json:"atr_value"`
}

// Compute builds one range per key candle: reference price is the key
// candle's close, the limits sit one ATR-multiple above and below it.
// Key candles where the ATR is still undefined (too early in the series)
// are skipped rather than treated as errors.
func Compute(bars []series.Bar, keyIndices []int, p Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	atr, err := indicator.ATR(bars, p.ATRPeriod)
	if err != nil {
		return nil, fmt.Errorf("computing atr: %w", err)
	}

	results := make([]Result, 0, len(keyIndices))
	for _, idx := range keyIndices {
		if idx < 0 || idx >= len(bars) {
			return nil, fmt.Errorf("key candle index %d outside series of %d bars", idx, len(bars))
		}
		value, err := indicator.At(atr, p.ATRPeriod, idx)
		if err != nil {
			// ATR undefined at this candle: no range emitted.
			continue
		}
		ref := bars[idx].Close
		margin := value * p.ATRMultiplier
		results = append(results, Result{
			Timestamp:      bars[idx].Timestamp,
			BarIndex:       idx,
			ReferencePrice: ref,
			UpperLimit:     ref + margin,
			LowerLimit:     ref - margin,
			ATRValue:       value,
		})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: atr period %d undefined at every key candle",
			series.ErrInsufficientWindow, p.ATRPeriod)
	}
	return results, nil
}

// Coverage measures how well the bands contain subsequent price action:
// for each range, the fraction of the next `horizon` closes that stay
// inside [lower, upper], averaged across all ranges. Ranges at the very
// end of the series with no subsequent bars are excluded from the average.
func Coverage(bars []series.Bar, results []Result, horizon int) (float64, error) {
	if horizon <= 0 {
		return 0, fmt.Errorf("coverage horizon must be positive, got %d", horizon)
	}
	var sum float64
	counted := 0
	for _, r := range results {
		lookahead := horizon
		if remaining := len(bars) - r.BarIndex - 1; remaining < lookahead {
			lookahead = remaining
		}
		if lookahead <= 0 {
			continue
		}
		inside := 0
		for i := r.BarIndex + 1; i <= r.BarIndex+lookahead; i++ {
			c := bars[i].Close
			if c >= r.LowerLimit && c <= r.UpperLimit {
				inside++
			}
		}
		sum += float64(inside) / float64(lookahead)
		counted++
	}
	if counted == 0 {
		return 0, fmt.Errorf("%w: no range has subsequent bars to cover", series.ErrInsufficientWindow)
	}
	return sum / float64(counted), nil
}

// Score converts observed coverage into the grid-search objective against
// the target coverage (e.g. 0.70), reporting the raw coverage alongside.
func Score(bars []series.Bar, results []Result, horizon int, target float64) (coverage, score float64, err error) {
	coverage, err = Coverage(bars, results, horizon)
	if err != nil {
		return 0, 0, err
	}
	return coverage, gridsearch.Closeness(coverage, target), nil
}

package indicator

import (
	"fmt"
	"math"

	"breakout-optimizer/internal/series"
)

// Point is one ATR value aligned to a bar of the source series.
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// ATR computes the simple-moving-average Average True Range over the given
// period. True Range for bar i (i >= 1) is
// max(high-low, |high-prevClose|, |low-prevClose|); the first bar has none.
// The ATR at bar i averages the trailing `period` true ranges ending at i,
// so output starts at bar index `period` and has len(bars)-period points.
// The computation is pure: the same bars and period always yield the same
// output.
func ATR(bars []series.Bar, period int) ([]Point, error) {
	if period <= 0 {
		return nil, fmt.Errorf("atr period must be positive, got %d", period)
	}
	if len(bars) <= period {
		return nil, fmt.Errorf("%w: atr period %d needs at least %d bars, got %d",
			series.ErrInsufficientWindow, period, period+1, len(bars))
	}

	// trueRanges[i-1] belongs to bar i.
	trueRanges := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		b := bars[i]
		prevClose := bars[i-1].Close
		tr := b.High - b.Low
		if hc := math.Abs(b.High - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(b.Low - prevClose); lc > tr {
			tr = lc
		}
		trueRanges[i-1] = tr
	}

	points := make([]Point, 0, len(bars)-period)
	var window float64
	for i, tr := range trueRanges {
		window += tr
		if i >= period {
			window -= trueRanges[i-period]
		}
		if i >= period-1 {
			points = append(points, Point{
				Timestamp: bars[i+1].Timestamp,
				Value:     window / float64(period),
			})
		}
	}
	return points, nil
}

// At returns the ATR value for the bar at index barIdx of the series the
// points were computed from. Bars before the window has filled have no ATR.
func At(points []Point, period, barIdx int) (float64, error) {
	i := barIdx - period
	if i < 0 || i >= len(points) {
		return 0, fmt.Errorf("%w: no atr defined at bar %d for period %d",
			series.ErrInsufficientWindow, barIdx, period)
	}
	return points[i].Value, nil
}

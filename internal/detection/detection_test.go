package detection

import (
	"errors"
	"testing"

	"breakout-optimizer/internal/series"
)

// spikeSeries builds 100 bars of wide-body filler plus one narrow-body,
// high-volume bar at index 50.
func spikeSeries() []series.Bar {
	bars := make([]series.Bar, 100)
	for i := range bars {
		bars[i] = series.Bar{
			Timestamp: int64((i + 1) * 60000),
			Open:      100,
			High:      101.2,
			Low:       99.9,
			Close:     101, // body 1.0 of range 1.3 ~ 77%
			Volume:    100 + float64(i%7),
		}
	}
	bars[50] = series.Bar{
		Timestamp: bars[50].Timestamp,
		Open:      100,
		High:      101,
		Low:       99,
		Close:     100.1, // body 0.1 of range 2.0 = 5%
		Volume:    1000,
	}
	return bars
}

// TestEvaluateMarksSpikeOnly tests that only the engineered bar is key
func TestEvaluateMarksSpikeOnly(t *testing.T) {
	p := Params{VolumePercentileThreshold: 80, BodyPercentageThreshold: 30, LookbackCandles: 20}

	results, err := Evaluate(spikeSeries(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 100 {
		t.Fatalf("expected 100 results, got %d", len(results))
	}

	indices := KeyIndices(results)
	if len(indices) != 1 || indices[0] != 50 {
		t.Fatalf("expected only bar 50 to be key, got %v", indices)
	}

	r := results[50]
	if !r.HasPercentile {
		t.Error("bar 50 should have a defined percentile")
	}
	if r.VolumePercentile != 100 {
		t.Errorf("spike bar should rank at percentile 100, got %v", r.VolumePercentile)
	}
	if r.BodyPercentage != 5 {
		t.Errorf("spike bar should have body percentage 5, got %v", r.BodyPercentage)
	}
}

// TestEvaluateWindowBoundary tests where the percentile becomes defined
func TestEvaluateWindowBoundary(t *testing.T) {
	p := Params{VolumePercentileThreshold: 80, BodyPercentageThreshold: 30, LookbackCandles: 20}

	results, err := Evaluate(spikeSeries(), p)
	if err != nil {
		t.Fatal(err)
	}
	if results[18].HasPercentile {
		t.Error("bar 18 precedes a full 20-bar window and should have no percentile")
	}
	if !results[19].HasPercentile {
		t.Error("bar 19 completes the 20-bar window and should have a percentile")
	}
	if results[18].IsKeyCandle {
		t.Error("bars without a percentile must never be key")
	}
}

// TestEvaluateFlatBars tests that zero-range bars do not panic or flag
func TestEvaluateFlatBars(t *testing.T) {
	bars := make([]series.Bar, 30)
	for i := range bars {
		bars[i] = series.Bar{
			Timestamp: int64((i + 1) * 60000),
			Open:      100,
			High:      100,
			Low:       100,
			Close:     100,
			Volume:    100,
		}
	}

	results, err := Evaluate(bars, Params{VolumePercentileThreshold: 80, BodyPercentageThreshold: 30, LookbackCandles: 10})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.BodyPercentage != 0 {
			t.Errorf("bar %d: flat bar should have body percentage 0, got %v", i, r.BodyPercentage)
		}
	}
}

// TestEvaluateMonotonicVolumeThreshold tests that loosening the volume
// threshold never reduces the key-candle count
func TestEvaluateMonotonicVolumeThreshold(t *testing.T) {
	bars := make([]series.Bar, 150)
	for i := range bars {
		bars[i] = series.Bar{
			Timestamp: int64((i + 1) * 60000),
			Open:      100,
			High:      102,
			Low:       98,
			Close:     100 + float64(i%5)*0.2, // bodies 0-20%
			Volume:    100 + float64((i*37)%90),
		}
	}

	prev := -1
	for _, thr := range []float64{95, 85, 75, 65, 55} {
		results, err := Evaluate(bars, Params{VolumePercentileThreshold: thr, BodyPercentageThreshold: 30, LookbackCandles: 20})
		if err != nil {
			t.Fatal(err)
		}
		count := len(KeyIndices(results))
		if prev >= 0 && count < prev {
			t.Errorf("threshold %v produced %d key candles, fewer than %d at the stricter threshold", thr, count, prev)
		}
		prev = count
	}
}

// TestEvaluateRejectsBadParams tests parameter domain validation
func TestEvaluateRejectsBadParams(t *testing.T) {
	bars := spikeSeries()
	bad := []Params{
		{VolumePercentileThreshold: -1, BodyPercentageThreshold: 30, LookbackCandles: 20},
		{VolumePercentileThreshold: 101, BodyPercentageThreshold: 30, LookbackCandles: 20},
		{VolumePercentileThreshold: 80, BodyPercentageThreshold: 150, LookbackCandles: 20},
		{VolumePercentileThreshold: 80, BodyPercentageThreshold: 30, LookbackCandles: 0},
	}
	for _, p := range bad {
		if _, err := Evaluate(bars, p); err == nil {
			t.Errorf("params %+v should be rejected", p)
		}
	}
}

// TestScore tests the fraction and closeness computation
func TestScore(t *testing.T) {
	// 10 defined bars, 1 key: fraction 0.1 exactly on a 0.1 target
	results := make([]Result, 12)
	for i := range results {
		results[i] = Result{Timestamp: int64(i), HasPercentile: i >= 2}
	}
	results[5].IsKeyCandle = true

	fraction, score, err := Score(results, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if fraction != 0.1 {
		t.Errorf("expected fraction 0.1, got %v", fraction)
	}
	if score != 1 {
		t.Errorf("fraction on target should score 1, got %v", score)
	}

	// No key candles at all: fraction 0, score clamps to 0
	for i := range results {
		results[i].IsKeyCandle = false
	}
	fraction, score, err = Score(results, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if fraction != 0 || score != 0 {
		t.Errorf("expected fraction 0 score 0, got %v %v", fraction, score)
	}
}

// TestScoreNoDefinedBars tests the short-series error path
func TestScoreNoDefinedBars(t *testing.T) {
	results := []Result{{Timestamp: 1}, {Timestamp: 2}}
	if _, _, err := Score(results, 0.1); !errors.Is(err, series.ErrInsufficientWindow) {
		t.Errorf("expected ErrInsufficientWindow, got %v", err)
	}
}

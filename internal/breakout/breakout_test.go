package breakout

import (
	"math"
	"testing"

	"breakout-optimizer/internal/ranges"
	"breakout-optimizer/internal/series"
)

func quietBars(n int) []series.Bar {
	bars := make([]series.Bar, n)
	for i := range bars {
		bars[i] = series.Bar{
			Timestamp: int64((i + 1) * 60000),
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    1000,
		}
	}
	return bars
}

// TestEvaluateBullishEscape tests the trigger arithmetic against a band
// at [97, 103] with a 0.5% threshold: the trigger sits at 103.515, a
// close of 103.6 clears it.
func TestEvaluateBullishEscape(t *testing.T) {
	bars := quietBars(10)
	bars[3].Close = 103.6
	bars[3].High = 104

	rr := []ranges.Result{{Timestamp: bars[2].Timestamp, BarIndex: 2, ReferencePrice: 100, UpperLimit: 103, LowerLimit: 97}}
	results, err := Evaluate(bars, rr, Params{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Direction != Bullish || !r.IsValid {
		t.Fatalf("expected a valid bullish breakout, got %+v", r)
	}
	if r.BarIndex != 3 || r.Timestamp != bars[3].Timestamp {
		t.Errorf("breakout should land on bar 3, got index %d", r.BarIndex)
	}
	if r.RangeTimestamp != bars[2].Timestamp {
		t.Errorf("result should reference the anchoring range, got %d", r.RangeTimestamp)
	}
	// (103.6 - 103) / 103 * 100
	want := 0.6 / 103 * 100
	if math.Abs(r.BreakoutPercentage-want) > 1e-9 {
		t.Errorf("expected breakout percentage %.6f, got %.6f", want, r.BreakoutPercentage)
	}
	if math.Abs(r.BreakoutPercentage-0.58) > 0.01 {
		t.Errorf("breakout percentage should be about 0.58, got %v", r.BreakoutPercentage)
	}
}

// TestEvaluateBelowTriggerIsNotABreakout tests that crossing the raw limit
// without clearing the threshold-scaled trigger does not count
func TestEvaluateBelowTriggerIsNotABreakout(t *testing.T) {
	bars := quietBars(10)
	bars[3].Close = 103.4 // above 103 but under the 103.515 trigger
	bars[3].High = 104

	rr := []ranges.Result{{Timestamp: bars[2].Timestamp, BarIndex: 2, UpperLimit: 103, LowerLimit: 97}}
	results, err := Evaluate(bars, rr, Params{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 3})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Direction != None || results[0].IsValid {
		t.Errorf("close under the trigger should not break out, got %+v", results[0])
	}
}

// TestEvaluateBearishEscape tests the lower trigger and signed percentage
func TestEvaluateBearishEscape(t *testing.T) {
	bars := quietBars(10)
	bars[4].Close = 96.4 // under 97 * 0.995 = 96.515
	bars[4].Low = 96

	rr := []ranges.Result{{Timestamp: bars[2].Timestamp, BarIndex: 2, UpperLimit: 103, LowerLimit: 97}}
	results, err := Evaluate(bars, rr, Params{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 3})
	if err != nil {
		t.Fatal(err)
	}

	r := results[0]
	if r.Direction != Bearish || !r.IsValid {
		t.Fatalf("expected a valid bearish breakout, got %+v", r)
	}
	if r.BreakoutPercentage >= 0 {
		t.Errorf("bearish breakout percentage should be negative, got %v", r.BreakoutPercentage)
	}
}

// TestEvaluateHorizonExpires tests that escapes past the horizon are missed
func TestEvaluateHorizonExpires(t *testing.T) {
	bars := quietBars(10)
	bars[7].Close = 110 // bar 7 is 5 candles after the anchor
	bars[7].High = 111

	rr := []ranges.Result{{Timestamp: bars[2].Timestamp, BarIndex: 2, UpperLimit: 103, LowerLimit: 97}}
	results, err := Evaluate(bars, rr, Params{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 3})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].IsValid {
		t.Errorf("escape outside the %d-candle horizon should not count", 3)
	}

	// The anchor's own coordinates are kept for no-breakout rows
	if results[0].Timestamp != bars[2].Timestamp || results[0].BarIndex != 2 {
		t.Errorf("no-breakout result should keep the anchor position, got %+v", results[0])
	}
}

// TestEvaluateFirstEscapeWins tests that scanning stops at the first trigger
func TestEvaluateFirstEscapeWins(t *testing.T) {
	bars := quietBars(10)
	bars[3].Close = 96.4
	bars[3].Low = 96
	bars[4].Close = 110
	bars[4].High = 111

	rr := []ranges.Result{{Timestamp: bars[2].Timestamp, BarIndex: 2, UpperLimit: 103, LowerLimit: 97}}
	results, err := Evaluate(bars, rr, Params{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 5})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Direction != Bearish || results[0].BarIndex != 3 {
		t.Errorf("first escape (bearish at bar 3) should win, got %+v", results[0])
	}
}

// TestEvaluateClampsAtSeriesEnd tests the horizon clamp near the last bar
func TestEvaluateClampsAtSeriesEnd(t *testing.T) {
	bars := quietBars(5)
	rr := []ranges.Result{{Timestamp: bars[3].Timestamp, BarIndex: 3, UpperLimit: 103, LowerLimit: 97}}

	results, err := Evaluate(bars, rr, Params{BreakoutThresholdPercentage: 0.5, MaxCandlesToReturn: 7})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].IsValid {
		t.Errorf("expected one quiet result despite the long horizon, got %+v", results)
	}
}

// TestDefaultProfitRule tests direction-continuation profitability
func TestDefaultProfitRule(t *testing.T) {
	bars := quietBars(12)
	bars[3].Close = 103.6
	bars[8].Close = 105 // 5 bars after the breakout, still higher

	rule := DefaultProfitRule(5)
	r := Result{BarIndex: 3, Direction: Bullish, IsValid: true}
	if !rule(bars, r) {
		t.Error("bullish breakout with a higher close 5 bars out should be profitable")
	}

	bars[8].Close = 100 // gave it all back
	if rule(bars, r) {
		t.Error("bullish breakout with a lower close 5 bars out should not be profitable")
	}

	// Horizon clamps to the last bar
	late := Result{BarIndex: 10, Direction: Bullish, IsValid: true}
	bars[10].Close = 104
	bars[11].Close = 106
	if !rule(bars, late) {
		t.Error("clamped horizon should use the final close")
	}
}

// TestScoreCombinedObjective tests the weighted ratio arithmetic
func TestScoreCombinedObjective(t *testing.T) {
	bars := quietBars(20)
	bars[5].Close = 105
	bars[10].Close = 106 // bar 5 breakout profitable at horizon 5

	results := []Result{
		{BarIndex: 5, Direction: Bullish, IsValid: true},
		{BarIndex: 8, Direction: None},
		{BarIndex: 12, Direction: None},
		{BarIndex: 14, Direction: None},
	}

	stats, score, err := Score(bars, results, ScoreConfig{
		ValidWeight:  0.4,
		ProfitWeight: 0.6,
		Profitable:   DefaultProfitRule(5),
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 4 || stats.Valid != 1 || stats.Profitable != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if math.Abs(stats.ValidRatio-0.25) > 1e-12 {
		t.Errorf("expected valid ratio 0.25, got %v", stats.ValidRatio)
	}
	if stats.ProfitRatio != 1 {
		t.Errorf("expected profit ratio 1, got %v", stats.ProfitRatio)
	}
	// 0.4*0.25 + 0.6*1.0
	if math.Abs(score-0.7) > 1e-12 {
		t.Errorf("expected combined score 0.7, got %v", score)
	}
}

// TestScoreNoValidBreakouts tests the zero-profit-ratio convention
func TestScoreNoValidBreakouts(t *testing.T) {
	bars := quietBars(10)
	results := []Result{{BarIndex: 2, Direction: None}, {BarIndex: 5, Direction: None}}

	stats, score, err := Score(bars, results, ScoreConfig{
		ValidWeight:  0.4,
		ProfitWeight: 0.6,
		Profitable:   DefaultProfitRule(5),
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.ValidRatio != 0 || stats.ProfitRatio != 0 || score != 0 {
		t.Errorf("expected all-zero score, got stats %+v score %v", stats, score)
	}
}

// TestScoreRejectsEmptyInput tests the guard clauses
func TestScoreRejectsEmptyInput(t *testing.T) {
	bars := quietBars(10)

	if _, _, err := Score(bars, nil, ScoreConfig{ValidWeight: 0.4, ProfitWeight: 0.6, Profitable: DefaultProfitRule(5)}); err == nil {
		t.Error("expected error for empty results")
	}
	results := []Result{{BarIndex: 2, Direction: None}}
	if _, _, err := Score(bars, results, ScoreConfig{ValidWeight: 0.4, ProfitWeight: 0.6}); err == nil {
		t.Error("expected error for missing profitability rule")
	}
}

package series

import (
	"errors"
	"fmt"
	"math"
)

// ErrDataIntegrity is returned when an input series violates the ordering
// or OHLC invariants. It is fatal: nothing downstream runs on bad data.
var ErrDataIntegrity = errors.New("data integrity violation")

// ErrInsufficientWindow is returned when a computation needs more trailing
// bars than the series provides. Callers recover by skipping the affected
// bars or failing the parameter candidate, never the whole run.
var ErrInsufficientWindow = errors.New("insufficient window")

// Bar is a single OHLCV candle. Timestamp is the bar open time in
// milliseconds since epoch. Bars are immutable once loaded.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// BodyPercentage returns the candle body as a percentage of the full
// high-low range (0-100). A flat bar (high == low) has a zero body.
func (b Bar) BodyPercentage() float64 {
	rng := b.High - b.Low
	if rng == 0 {
		return 0
	}
	return math.Abs(b.Close-b.Open) / rng * 100
}

// Series is a finite, time-ordered sequence of bars for one symbol.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// New builds a validated series. It fails fast on malformed input.
func New(symbol string, bars []Bar) (Series, error) {
	s := Series{Symbol: symbol, Bars: bars}
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	return s, nil
}

// Validate checks the series invariants: strictly increasing timestamps
// (no duplicates) and high >= low on every bar.
func (s Series) Validate() error {
	for i, b := range s.Bars {
		if b.High < b.Low {
			return fmt.Errorf("%w: bar %d (ts %d) has high %.8f < low %.8f",
				ErrDataIntegrity, i, b.Timestamp, b.High, b.Low)
		}
		if i > 0 && b.Timestamp <= s.Bars[i-1].Timestamp {
			return fmt.Errorf("%w: bar %d timestamp %d not after previous %d",
				ErrDataIntegrity, i, b.Timestamp, s.Bars[i-1].Timestamp)
		}
	}
	return nil
}

// Len returns the number of bars.
func (s Series) Len() int {
	return len(s.Bars)
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Repository provides data access for optimizer params and results.
// Params rows are immutable once written; a new grid search always inserts
// new rows. The is_active flag marks the latest winner per stage.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// DetectionParamsRow mirrors one detection_params row.
type DetectionParamsRow struct {
	ID                        int64     `json:"id"`
	VolumePercentileThreshold float64   `json:"volume_percentile_threshold"`
	BodyPercentageThreshold   float64   `json:"body_percentage_threshold"`
	LookbackCandles           int       `json:"lookback_candles"`
	PerformanceScore          float64   `json:"performance_score"`
	IsActive                  bool      `json:"is_active"`
	CreatedAt                 time.Time `json:"created_at"`
}

// DetectionDataRow mirrors one detection_data row.
type DetectionDataRow struct {
	ID               int64     `json:"id"`
	ParamID          int64     `json:"param_id"`
	Symbol           string    `json:"symbol"`
	Timestamp        int64     `json:"timestamp"`
	Volume           float64   `json:"volume"`
	BodyPercentage   float64   `json:"body_percentage"`
	VolumePercentile float64   `json:"volume_percentile"`
	IsKeyCandle      bool      `json:"is_key_candle"`
	CreatedAt        time.Time `json:"created_at"`
}

// RangeParamsRow mirrors one range_params row.
type RangeParamsRow struct {
	ID               int64     `json:"id"`
	ATRPeriod        int       `json:"atr_period"`
	ATRMultiplier    float64   `json:"atr_multiplier"`
	PerformanceScore float64   `json:"performance_score"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// RangeDataRow mirrors one range_data row.
type RangeDataRow struct {
	ID             int64     `json:"id"`
	ParamID        int64     `json:"param_id"`
	DetectionID    int64     `json:"detection_id"`
	Symbol         string    `json:"symbol"`
	Timestamp      int64     `json:"timestamp"`
	ReferencePrice float64   `json:"reference_price"`
	ATRValue       float64   `json:"atr_value"`
	UpperLimit     float64   `json:"upper_limit"`
	LowerLimit     float64   `json:"lower_limit"`
	CreatedAt      time.Time `json:"created_at"`
}

// BreakoutParamsRow mirrors one breakout_params row.
type BreakoutParamsRow struct {
	ID                          int64     `json:"id"`
	BreakoutThresholdPercentage float64   `json:"breakout_threshold_percentage"`
	MaxCandlesToReturn          int       `json:"max_candles_to_return"`
	PerformanceScore            float64   `json:"performance_score"`
	IsActive                    bool      `json:"is_active"`
	CreatedAt                   time.Time `json:"created_at"`
}

// BreakoutDataRow mirrors one breakout_data row.
type BreakoutDataRow struct {
	ID                 int64     `json:"id"`
	ParamID            int64     `json:"param_id"`
	RangeID            int64     `json:"range_id"`
	Symbol             string    `json:"symbol"`
	Timestamp          int64     `json:"timestamp"`
	Direction          string    `json:"direction"`
	BreakoutPercentage float64   `json:"breakout_percentage"`
	IsValid            bool      `json:"is_valid"`
	CreatedAt          time.Time `json:"created_at"`
}

// beginStageTx opens the transaction every stage write runs in and
// deactivates the previous active params row for the stage's table, so
// exactly one winner per stage is flagged active at any time.
func (r *Repository) beginStageTx(ctx context.Context, paramsTable string) (pgx.Tx, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("UPDATE %s SET is_active = FALSE WHERE is_active", paramsTable)); err != nil {
		tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to deactivate previous %s: %w", paramsTable, err)
	}
	return tx, nil
}

package database

import (
	"context"
	"fmt"

	"breakout-optimizer/internal/breakout"
)

// SaveBreakoutStage persists a winning breakout parameter set and its
// results in one transaction. Each result row carries a foreign key to the
// range row it evaluates, resolved through rangeIDs (range timestamp to
// range_data id).
func (r *Repository) SaveBreakoutStage(ctx context.Context, symbol string, p breakout.Params, score float64, results []breakout.Result, rangeIDs map[int64]int64) (int64, error) {
	tx, err := r.beginStageTx(ctx, "breakout_params")
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var paramID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO breakout_params (
			breakout_threshold_percentage, max_candles_to_return, performance_score, is_active
		) VALUES ($1, $2, $3, TRUE)
		RETURNING id
	`, p.BreakoutThresholdPercentage, p.MaxCandlesToReturn, score).Scan(&paramID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert breakout params: %w", err)
	}

	query := `
		INSERT INTO breakout_data (
			param_id, range_id, symbol, timestamp, direction, breakout_percentage, is_valid
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, res := range results {
		rangeID, ok := rangeIDs[res.RangeTimestamp]
		if !ok {
			return 0, fmt.Errorf("no range row for breakout at ts %d", res.RangeTimestamp)
		}
		_, err := tx.Exec(ctx, query,
			paramID, rangeID, symbol, res.Timestamp,
			string(res.Direction), res.BreakoutPercentage, res.IsValid,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert breakout data at ts %d: %w", res.Timestamp, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit breakout stage: %w", err)
	}
	return paramID, nil
}

// GetActiveBreakoutParams returns the currently active breakout parameter
// set, or nil if none has been persisted yet.
func (r *Repository) GetActiveBreakoutParams(ctx context.Context) (*BreakoutParamsRow, error) {
	var row BreakoutParamsRow
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, breakout_threshold_percentage, max_candles_to_return, performance_score, is_active, created_at
		FROM breakout_params
		WHERE is_active
		LIMIT 1
	`).Scan(&row.ID, &row.BreakoutThresholdPercentage, &row.MaxCandlesToReturn, &row.PerformanceScore, &row.IsActive, &row.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active breakout params: %w", err)
	}
	return &row, nil
}

// GetBreakoutResults retrieves the breakout rows owned by a parameter set,
// in bar order.
func (r *Repository) GetBreakoutResults(ctx context.Context, paramID int64) ([]BreakoutDataRow, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, param_id, range_id, symbol, timestamp, direction, breakout_percentage, is_valid, created_at
		FROM breakout_data
		WHERE param_id = $1
		ORDER BY timestamp ASC
	`, paramID)
	if err != nil {
		return nil, fmt.Errorf("failed to query breakout data: %w", err)
	}
	defer rows.Close()

	results := []BreakoutDataRow{}
	for rows.Next() {
		var row BreakoutDataRow
		err := rows.Scan(
			&row.ID, &row.ParamID, &row.RangeID, &row.Symbol, &row.Timestamp,
			&row.Direction, &row.BreakoutPercentage, &row.IsValid, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan breakout data: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating breakout data: %w", err)
	}
	return results, nil
}

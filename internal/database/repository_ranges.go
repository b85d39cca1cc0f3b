package database

import (
	"context"
	"fmt"

	"breakout-optimizer/internal/ranges"
)

// SaveRangeStage persists a winning range parameter set and its results in
// one transaction. Each result row carries a foreign key to the detection
// row that anchors it, resolved through detectionIDs (bar timestamp to
// detection_data id). It returns the params row id and a map from range
// timestamp to range_data row id.
func (r *Repository) SaveRangeStage(ctx context.Context, symbol string, p ranges.Params, score float64, results []ranges.Result, detectionIDs map[int64]int64) (int64, map[int64]int64, error) {
	tx, err := r.beginStageTx(ctx, "range_params")
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback(ctx)

	var paramID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO range_params (atr_period, atr_multiplier, performance_score, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id
	`, p.ATRPeriod, p.ATRMultiplier, score).Scan(&paramID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to insert range params: %w", err)
	}

	query := `
		INSERT INTO range_data (
			param_id, detection_id, symbol, timestamp, reference_price, atr_value, upper_limit, lower_limit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	resultIDs := make(map[int64]int64, len(results))
	for _, res := range results {
		detectionID, ok := detectionIDs[res.Timestamp]
		if !ok {
			return 0, nil, fmt.Errorf("no detection row for range at ts %d", res.Timestamp)
		}
		var id int64
		err := tx.QueryRow(ctx, query,
			paramID, detectionID, symbol, res.Timestamp,
			res.ReferencePrice, res.ATRValue, res.UpperLimit, res.LowerLimit,
		).Scan(&id)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to insert range data at ts %d: %w", res.Timestamp, err)
		}
		resultIDs[res.Timestamp] = id
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("failed to commit range stage: %w", err)
	}
	return paramID, resultIDs, nil
}

// GetActiveRangeParams returns the currently active range parameter set,
// or nil if none has been persisted yet.
func (r *Repository) GetActiveRangeParams(ctx context.Context) (*RangeParamsRow, error) {
	var row RangeParamsRow
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, atr_period, atr_multiplier, performance_score, is_active, created_at
		FROM range_params
		WHERE is_active
		LIMIT 1
	`).Scan(&row.ID, &row.ATRPeriod, &row.ATRMultiplier, &row.PerformanceScore, &row.IsActive, &row.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active range params: %w", err)
	}
	return &row, nil
}

// GetRangeResults retrieves the range rows owned by a parameter set, in
// bar order.
func (r *Repository) GetRangeResults(ctx context.Context, paramID int64) ([]RangeDataRow, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, param_id, detection_id, symbol, timestamp,
		       reference_price, atr_value, upper_limit, lower_limit, created_at
		FROM range_data
		WHERE param_id = $1
		ORDER BY timestamp ASC
	`, paramID)
	if err != nil {
		return nil, fmt.Errorf("failed to query range data: %w", err)
	}
	defer rows.Close()

	results := []RangeDataRow{}
	for rows.Next() {
		var row RangeDataRow
		err := rows.Scan(
			&row.ID, &row.ParamID, &row.DetectionID, &row.Symbol, &row.Timestamp,
			&row.ReferencePrice, &row.ATRValue, &row.UpperLimit, &row.LowerLimit, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan range data: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating range data: %w", err)
	}
	return results, nil
}

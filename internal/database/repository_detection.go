package database

import (
	"context"
	"fmt"

	"breakout-optimizer/internal/detection"
)

// SaveDetectionStage persists a winning detection parameter set and its
// full result set in one transaction. It returns the params row id and a
// map from bar timestamp to detection_data row id for downstream lineage.
func (r *Repository) SaveDetectionStage(ctx context.Context, symbol string, p detection.Params, score float64, results []detection.Result) (int64, map[int64]int64, error) {
	tx, err := r.beginStageTx(ctx, "detection_params")
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback(ctx)

	var paramID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO detection_params (
			volume_percentile_threshold, body_percentage_threshold, lookback_candles,
			performance_score, is_active
		) VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id
	`, p.VolumePercentileThreshold, p.BodyPercentageThreshold, p.LookbackCandles, score).Scan(&paramID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to insert detection params: %w", err)
	}

	query := `
		INSERT INTO detection_data (
			param_id, symbol, timestamp, volume, body_percentage, volume_percentile, is_key_candle
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	resultIDs := make(map[int64]int64, len(results))
	for _, res := range results {
		var id int64
		err := tx.QueryRow(ctx, query,
			paramID, symbol, res.Timestamp, res.Volume, res.BodyPercentage, res.VolumePercentile, res.IsKeyCandle,
		).Scan(&id)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to insert detection data at ts %d: %w", res.Timestamp, err)
		}
		resultIDs[res.Timestamp] = id
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("failed to commit detection stage: %w", err)
	}
	return paramID, resultIDs, nil
}

// GetActiveDetectionParams returns the currently active detection
// parameter set, or nil if none has been persisted yet.
func (r *Repository) GetActiveDetectionParams(ctx context.Context) (*DetectionParamsRow, error) {
	var row DetectionParamsRow
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, volume_percentile_threshold, body_percentage_threshold, lookback_candles,
		       performance_score, is_active, created_at
		FROM detection_params
		WHERE is_active
		LIMIT 1
	`).Scan(
		&row.ID, &row.VolumePercentileThreshold, &row.BodyPercentageThreshold, &row.LookbackCandles,
		&row.PerformanceScore, &row.IsActive, &row.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active detection params: %w", err)
	}
	return &row, nil
}

// GetDetectionResults retrieves the result rows owned by a parameter set,
// in bar order. keyOnly restricts the query to flagged key candles.
func (r *Repository) GetDetectionResults(ctx context.Context, paramID int64, keyOnly bool) ([]DetectionDataRow, error) {
	query := `
		SELECT id, param_id, symbol, timestamp, volume, body_percentage, volume_percentile, is_key_candle, created_at
		FROM detection_data
		WHERE param_id = $1
	`
	if keyOnly {
		query += ` AND is_key_candle`
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := r.db.Pool.Query(ctx, query, paramID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detection data: %w", err)
	}
	defer rows.Close()

	results := []DetectionDataRow{}
	for rows.Next() {
		var row DetectionDataRow
		err := rows.Scan(
			&row.ID, &row.ParamID, &row.Symbol, &row.Timestamp,
			&row.Volume, &row.BodyPercentage, &row.VolumePercentile, &row.IsKeyCandle, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection data: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detection data: %w", err)
	}
	return results, nil
}

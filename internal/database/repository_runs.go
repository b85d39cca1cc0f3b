package database

import (
	"context"
	"encoding/json"
	"fmt"

	"breakout-optimizer/internal/optimizer"
)

// SaveRunSummary inserts the summary row for a completed run.
func (r *Repository) SaveRunSummary(ctx context.Context, summary *optimizer.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO optimizer_runs (
			run_id, symbol, detection_param_id, range_param_id, breakout_param_id,
			summary, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, summary.RunID, summary.Symbol,
		summary.Detection.ParamID, summary.Range.ParamID, summary.Breakout.ParamID,
		payload, summary.StartedAt, summary.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run summary: %w", err)
	}
	return nil
}

// GetRunSummary retrieves a run summary by its run id.
func (r *Repository) GetRunSummary(ctx context.Context, runID string) (*optimizer.RunSummary, error) {
	var payload []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT summary FROM optimizer_runs WHERE run_id = $1`, runID,
	).Scan(&payload)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}
	return unmarshalSummary(payload)
}

// GetLatestRunSummary retrieves the most recently completed run for a
// symbol, or nil if the symbol has never been optimized.
func (r *Repository) GetLatestRunSummary(ctx context.Context, symbol string) (*optimizer.RunSummary, error) {
	var payload []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT summary FROM optimizer_runs
		WHERE symbol = $1
		ORDER BY completed_at DESC
		LIMIT 1
	`, symbol).Scan(&payload)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run summary: %w", err)
	}
	return unmarshalSummary(payload)
}

func unmarshalSummary(payload []byte) (*optimizer.RunSummary, error) {
	var summary optimizer.RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}
	return &summary, nil
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		// Detection parameter sets: one row per winning grid-search candidate
		`CREATE TABLE IF NOT EXISTS detection_params (
			id BIGSERIAL PRIMARY KEY,
			volume_percentile_threshold DECIMAL(5, 2) NOT NULL,
			body_percentage_threshold DECIMAL(5, 2) NOT NULL,
			lookback_candles INT NOT NULL,
			performance_score DECIMAL(10, 6) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detection_params_active ON detection_params(is_active)`,

		// Per-bar detection results, owned by their parameter set
		`CREATE TABLE IF NOT EXISTS detection_data (
			id BIGSERIAL PRIMARY KEY,
			param_id BIGINT NOT NULL REFERENCES detection_params(id) ON DELETE CASCADE,
			symbol VARCHAR(20) NOT NULL,
			timestamp BIGINT NOT NULL,
			volume DECIMAL(30, 8) NOT NULL,
			body_percentage DECIMAL(10, 4) NOT NULL,
			volume_percentile DECIMAL(10, 4) NOT NULL,
			is_key_candle BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detection_data_param ON detection_data(param_id)`,
		`CREATE INDEX IF NOT EXISTS idx_detection_data_key ON detection_data(param_id, is_key_candle)`,

		// Range parameter sets
		`CREATE TABLE IF NOT EXISTS range_params (
			id BIGSERIAL PRIMARY KEY,
			atr_period INT NOT NULL,
			atr_multiplier DECIMAL(10, 4) NOT NULL,
			performance_score DECIMAL(10, 6) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_range_params_active ON range_params(is_active)`,

		// Per-key-candle ranges, linked to the detection row that anchors them
		`CREATE TABLE IF NOT EXISTS range_data (
			id BIGSERIAL PRIMARY KEY,
			param_id BIGINT NOT NULL REFERENCES range_params(id) ON DELETE CASCADE,
			detection_id BIGINT NOT NULL REFERENCES detection_data(id) ON DELETE CASCADE,
			symbol VARCHAR(20) NOT NULL,
			timestamp BIGINT NOT NULL,
			reference_price DECIMAL(20, 8) NOT NULL,
			atr_value DECIMAL(20, 8) NOT NULL,
			upper_limit DECIMAL(20, 8) NOT NULL,
			lower_limit DECIMAL(20, 8) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_range_data_param ON range_data(param_id)`,
		`CREATE INDEX IF NOT EXISTS idx_range_data_detection ON range_data(detection_id)`,

		// Breakout parameter sets
		`CREATE TABLE IF NOT EXISTS breakout_params (
			id BIGSERIAL PRIMARY KEY,
			breakout_threshold_percentage DECIMAL(10, 4) NOT NULL,
			max_candles_to_return INT NOT NULL,
			performance_score DECIMAL(10, 6) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_breakout_params_active ON breakout_params(is_active)`,

		// Per-range breakout evaluations, linked to the range they evaluate
		`CREATE TABLE IF NOT EXISTS breakout_data (
			id BIGSERIAL PRIMARY KEY,
			param_id BIGINT NOT NULL REFERENCES breakout_params(id) ON DELETE CASCADE,
			range_id BIGINT NOT NULL REFERENCES range_data(id) ON DELETE CASCADE,
			symbol VARCHAR(20) NOT NULL,
			timestamp BIGINT NOT NULL,
			direction VARCHAR(10) NOT NULL,
			breakout_percentage DECIMAL(10, 4) NOT NULL,
			is_valid BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_breakout_data_param ON breakout_data(param_id)`,
		`CREATE INDEX IF NOT EXISTS idx_breakout_data_range ON breakout_data(range_id)`,

		// One summary row per completed optimization run
		`CREATE TABLE IF NOT EXISTS optimizer_runs (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL UNIQUE,
			symbol VARCHAR(20) NOT NULL,
			detection_param_id BIGINT NOT NULL REFERENCES detection_params(id),
			range_param_id BIGINT NOT NULL REFERENCES range_params(id),
			breakout_param_id BIGINT NOT NULL REFERENCES breakout_params(id),
			summary JSONB NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_optimizer_runs_symbol ON optimizer_runs(symbol, completed_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

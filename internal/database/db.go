package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DB represents a database connection
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// New creates a new database connection from a postgres DSN
func New(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &DB{
		DB:     db,
		logger: log.With().Str("component", "database").Logger(),
	}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			trade_id TEXT UNIQUE NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			entry_price NUMERIC(18,8) NOT NULL,
			exit_price NUMERIC(18,8),
			direction TEXT NOT NULL,
			result NUMERIC(18,8),
			result_percent NUMERIC(10,4),
			decision TEXT,
			confidence NUMERIC(5,4),
			reasoning TEXT,
			market_context JSONB,
			trade_context JSONB,
			critique TEXT,
			extracted_rules JSONB,
			learning_processed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS rules (
			id UUID PRIMARY KEY,
			rule_id TEXT UNIQUE NOT NULL,
			rule_text TEXT NOT NULL,
			rule_type TEXT NOT NULL,
			confidence NUMERIC(5,4) NOT NULL DEFAULT 0.5,
			times_validated INTEGER NOT NULL DEFAULT 0,
			times_violated INTEGER NOT NULL DEFAULT 0,
			source_trade_id UUID REFERENCES trades(id),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS statistics (
			id UUID PRIMARY KEY,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			total_trades INTEGER NOT NULL DEFAULT 0,
			winning_trades INTEGER NOT NULL DEFAULT 0,
			losing_trades INTEGER NOT NULL DEFAULT 0,
			total_pnl NUMERIC(18,8) NOT NULL DEFAULT 0,
			avg_win NUMERIC(18,8) NOT NULL DEFAULT 0,
			avg_loss NUMERIC(18,8) NOT NULL DEFAULT 0,
			max_win NUMERIC(18,8) NOT NULL DEFAULT 0,
			max_loss NUMERIC(18,8) NOT NULL DEFAULT 0,
			win_rate NUMERIC(5,4) NOT NULL DEFAULT 0,
			profit_factor NUMERIC(10,4) NOT NULL DEFAULT 0,
			expectancy NUMERIC(18,8) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_statistics_symbol_timeframe UNIQUE (symbol, timeframe)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS learning_queue (
			id UUID PRIMARY KEY,
			trade_id UUID NOT NULL REFERENCES trades(id),
			status TEXT NOT NULL DEFAULT 'PENDING',
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			queued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return err
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_trades_symbol_timeframe ON trades(symbol, timeframe)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_learning_queue_status ON learning_queue(status)`)

	return nil
}

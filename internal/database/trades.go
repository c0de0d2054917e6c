package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poorman/SynapseStrike/models"
)

// RecordTrade inserts the trade together with its PENDING learning-queue
// item in one transaction. Missing ids and timestamps are filled in.
func (db *DB) RecordTrade(ctx context.Context, trade *models.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = now
	}
	trade.UpdatedAt = now

	marketContext, err := json.Marshal(trade.MarketContext)
	if err != nil {
		return fmt.Errorf("encoding market context: %w", err)
	}
	tradeContext, err := json.Marshal(trade.TradeContext)
	if err != nil {
		return fmt.Errorf("encoding trade context: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (
			id, trade_id, symbol, timeframe, entry_price, exit_price, direction,
			result, result_percent, decision, confidence, reasoning,
			market_context, trade_context, created_at, closed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		trade.ID, trade.TradeID, trade.Symbol, trade.Timeframe,
		trade.EntryPrice, trade.ExitPrice, trade.Direction,
		trade.Result, trade.ResultPercent,
		nullString(trade.Decision), trade.Confidence, nullString(trade.Reasoning),
		marketContext, tradeContext,
		trade.CreatedAt, trade.ClosedAt, trade.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO learning_queue (id, trade_id, status, queued_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), trade.ID, models.QueueStatusPending, now)
	if err != nil {
		return fmt.Errorf("enqueueing learning: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trade: %w", err)
	}

	db.logger.Info().Str("trade_id", trade.TradeID).Str("id", trade.ID).Msg("Recorded trade")
	return nil
}

// GetTrade retrieves a trade by internal id. Returns (nil, nil) when no
// trade exists.
func (db *DB) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	var trade models.Trade
	var decision, reasoning, critique sql.NullString
	var confidence sql.NullFloat64
	var marketContext, tradeContext, extractedRules []byte
	var learningProcessedAt, closedAt sql.NullTime

	err := db.QueryRowContext(ctx, `
		SELECT
			id, trade_id, symbol, timeframe, entry_price, exit_price, direction,
			result, result_percent, decision, confidence, reasoning,
			market_context, trade_context, critique, extracted_rules,
			learning_processed_at, created_at, closed_at, updated_at
		FROM trades
		WHERE id = $1
	`, id).Scan(
		&trade.ID, &trade.TradeID, &trade.Symbol, &trade.Timeframe,
		&trade.EntryPrice, &trade.ExitPrice, &trade.Direction,
		&trade.Result, &trade.ResultPercent,
		&decision, &confidence, &reasoning,
		&marketContext, &tradeContext, &critique, &extractedRules,
		&learningProcessedAt, &trade.CreatedAt, &closedAt, &trade.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No trade found
		}
		return nil, fmt.Errorf("loading trade: %w", err)
	}

	if decision.Valid {
		trade.Decision = decision.String
	}
	if confidence.Valid {
		trade.Confidence = confidence.Float64
	}
	if reasoning.Valid {
		trade.Reasoning = reasoning.String
	}
	if critique.Valid {
		trade.Critique = critique.String
	}
	if len(marketContext) > 0 {
		if err := json.Unmarshal(marketContext, &trade.MarketContext); err != nil {
			return nil, fmt.Errorf("decoding market context: %w", err)
		}
	}
	if len(tradeContext) > 0 {
		if err := json.Unmarshal(tradeContext, &trade.TradeContext); err != nil {
			return nil, fmt.Errorf("decoding trade context: %w", err)
		}
	}
	if len(extractedRules) > 0 {
		trade.ExtractedRules = extractedRules
	}
	if learningProcessedAt.Valid {
		trade.LearningProcessedAt = &learningProcessedAt.Time
	}
	if closedAt.Valid {
		trade.ClosedAt = &closedAt.Time
	}

	return &trade, nil
}

// GetStatistic retrieves the aggregate row for (symbol, timeframe).
// Returns (nil, nil) when no trades have been processed yet.
func (db *DB) GetStatistic(ctx context.Context, symbol, timeframe string) (*models.Statistic, error) {
	var stat models.Statistic
	err := db.QueryRowContext(ctx, `
		SELECT
			id, symbol, timeframe, total_trades, winning_trades, losing_trades,
			total_pnl, avg_win, avg_loss, max_win, max_loss,
			win_rate, profit_factor, expectancy, updated_at
		FROM statistics
		WHERE symbol = $1 AND timeframe = $2
	`, symbol, timeframe).Scan(
		&stat.ID, &stat.Symbol, &stat.Timeframe,
		&stat.TotalTrades, &stat.WinningTrades, &stat.LosingTrades,
		&stat.TotalPnL, &stat.AvgWin, &stat.AvgLoss, &stat.MaxWin, &stat.MaxLoss,
		&stat.WinRate, &stat.ProfitFactor, &stat.Expectancy, &stat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading statistic: %w", err)
	}
	return &stat, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

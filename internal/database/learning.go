package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poorman/SynapseStrike/internal/metrics"
	"github.com/poorman/SynapseStrike/models"
)

// FinalizeLearning persists the outcome of one learning run atomically:
// the trade's critique/extracted-rules fields, the extracted Rule rows, the
// recomputed (symbol, timeframe) statistic, and the COMPLETED queue state.
// The statistic row is locked for update before recomputation so concurrent
// learning runs cannot interleave read-modify-write cycles.
func (db *DB) FinalizeLearning(ctx context.Context, upd *models.LearningUpdate) error {
	trade := upd.Trade
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE trades
		SET critique = $1, extracted_rules = $2, learning_processed_at = $3, updated_at = $3
		WHERE id = $4
	`, trade.Critique, []byte(trade.ExtractedRules), now, trade.ID)
	if err != nil {
		return fmt.Errorf("updating trade: %w", err)
	}

	for i := range upd.Rules {
		rule := &upd.Rules[i]
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rules (
				id, rule_id, rule_text, rule_type, confidence,
				source_trade_id, is_active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, rule.ID, rule.RuleID, rule.RuleText, rule.RuleType, rule.Confidence,
			rule.SourceTradeID, rule.IsActive, now)
		if err != nil {
			return fmt.Errorf("inserting rule %s: %w", rule.RuleID, err)
		}
	}

	if err := db.updateStatistics(ctx, tx, trade, now); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE learning_queue
		SET status = $1, completed_at = $2
		WHERE trade_id = $3
	`, models.QueueStatusCompleted, now, trade.ID)
	if err != nil {
		return fmt.Errorf("completing queue item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing learning: %w", err)
	}

	db.logger.Info().Str("trade_id", trade.TradeID).Int("rules", len(upd.Rules)).Msg("Finalized learning")
	return nil
}

// updateStatistics folds the trade into its (symbol, timeframe) aggregate
// under a row lock. Win/loss averages are recomputed from the historical
// trade population of the same symbol and timeframe.
func (db *DB) updateStatistics(ctx context.Context, tx *sql.Tx, trade *models.Trade, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO statistics (id, symbol, timeframe)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, timeframe) DO NOTHING
	`, uuid.NewString(), trade.Symbol, trade.Timeframe)
	if err != nil {
		return fmt.Errorf("ensuring statistic row: %w", err)
	}

	var stat models.Statistic
	err = tx.QueryRowContext(ctx, `
		SELECT
			id, symbol, timeframe, total_trades, winning_trades, losing_trades,
			total_pnl, avg_win, avg_loss, max_win, max_loss,
			win_rate, profit_factor, expectancy
		FROM statistics
		WHERE symbol = $1 AND timeframe = $2
		FOR UPDATE
	`, trade.Symbol, trade.Timeframe).Scan(
		&stat.ID, &stat.Symbol, &stat.Timeframe,
		&stat.TotalTrades, &stat.WinningTrades, &stat.LosingTrades,
		&stat.TotalPnL, &stat.AvgWin, &stat.AvgLoss, &stat.MaxWin, &stat.MaxLoss,
		&stat.WinRate, &stat.ProfitFactor, &stat.Expectancy,
	)
	if err != nil {
		return fmt.Errorf("locking statistic row: %w", err)
	}

	stat.ApplyTradeResult(trade.Result)

	var avgWin, avgLoss float64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(result), 0)
		FROM trades
		WHERE symbol = $1 AND timeframe = $2 AND result > 0
	`, trade.Symbol, trade.Timeframe).Scan(&avgWin)
	if err != nil {
		return fmt.Errorf("averaging wins: %w", err)
	}
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(result), 0)
		FROM trades
		WHERE symbol = $1 AND timeframe = $2 AND result < 0
	`, trade.Symbol, trade.Timeframe).Scan(&avgLoss)
	if err != nil {
		return fmt.Errorf("averaging losses: %w", err)
	}

	stat.RecomputeDerived(avgWin, avgLoss)

	_, err = tx.ExecContext(ctx, `
		UPDATE statistics
		SET total_trades = $1, winning_trades = $2, losing_trades = $3,
			total_pnl = $4, avg_win = $5, avg_loss = $6, max_win = $7, max_loss = $8,
			win_rate = $9, profit_factor = $10, expectancy = $11, updated_at = $12
		WHERE id = $13
	`, stat.TotalTrades, stat.WinningTrades, stat.LosingTrades,
		stat.TotalPnL, stat.AvgWin, stat.AvgLoss, stat.MaxWin, stat.MaxLoss,
		stat.WinRate, stat.ProfitFactor, stat.Expectancy, now, stat.ID)
	if err != nil {
		return fmt.Errorf("updating statistic: %w", err)
	}

	return nil
}

// MarkLearningFailed records the error on the trade's queue item and bumps
// its attempt counter.
func (db *DB) MarkLearningFailed(ctx context.Context, tradeID, lastError string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE learning_queue
		SET status = $1, last_error = $2, attempts = attempts + 1
		WHERE trade_id = $3
	`, models.QueueStatusFailed, lastError, tradeID)
	if err != nil {
		return fmt.Errorf("marking queue item failed: %w", err)
	}
	return nil
}

// ClaimPending atomically moves the trade's queue item from PENDING to
// PROCESSING. The conditional update makes the claim exclusive: whichever
// worker flips the status first wins, everyone else gets false.
func (db *DB) ClaimPending(ctx context.Context, tradeID string) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE learning_queue
		SET status = $1, started_at = NOW()
		WHERE trade_id = $2 AND status = $3
	`, models.QueueStatusProcessing, tradeID, models.QueueStatusPending)
	if err != nil {
		return false, fmt.Errorf("claiming trade %s: %w", tradeID, err)
	}

	claimed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming trade %s: %w", tradeID, err)
	}
	if claimed > 0 {
		metrics.QueueClaimsTotal.Inc()
	}
	return claimed > 0, nil
}

// ClaimNextPending atomically moves the oldest PENDING queue item to
// PROCESSING and returns it. Returns (nil, nil) when the queue is empty.
// SKIP LOCKED lets multiple learner processes poll without contention.
func (db *DB) ClaimNextPending(ctx context.Context) (*models.LearningQueueItem, error) {
	var item models.LearningQueueItem
	var lastError sql.NullString
	var startedAt sql.NullTime

	err := db.QueryRowContext(ctx, `
		UPDATE learning_queue
		SET status = $1, started_at = NOW()
		WHERE id = (
			SELECT id FROM learning_queue
			WHERE status = $2
			ORDER BY queued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, trade_id, status, attempts, last_error, queued_at, started_at
	`, models.QueueStatusProcessing, models.QueueStatusPending).Scan(
		&item.ID, &item.TradeID, &item.Status, &item.Attempts,
		&lastError, &item.QueuedAt, &startedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Queue empty
		}
		return nil, fmt.Errorf("claiming queue item: %w", err)
	}

	if lastError.Valid {
		item.LastError = lastError.String
	}
	if startedAt.Valid {
		item.StartedAt = &startedAt.Time
	}

	metrics.QueueClaimsTotal.Inc()
	return &item, nil
}

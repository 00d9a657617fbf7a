package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"metal-pricer/internal/domain/model"
)

const (
	StatusInProgress = "IN_PROGRESS"
	StatusSucceeded  = "SUCCEEDED"
	StatusFailed     = "FAILED"

	DefaultLockStaleAfter = 15 * time.Minute
)

var ErrRunInProgress = errors.New("sync already in progress")

// SyncLogRepository keeps one audit row per run. An IN_PROGRESS row doubles
// as the per-shop run lock; it is ignored once older than staleAfter.
type SyncLogRepository struct {
	db         *sql.DB
	staleAfter time.Duration
	now        func() time.Time
}

func NewSyncLogRepository(db *sql.DB, staleAfter time.Duration) *SyncLogRepository {
	if staleAfter <= 0 {
		staleAfter = DefaultLockStaleAfter
	}
	return &SyncLogRepository{db: db, staleAfter: staleAfter, now: time.Now}
}

// Begin takes the run lock for shop and records the run as IN_PROGRESS.
func (r *SyncLogRepository) Begin(ctx context.Context, runID, shop string, dryRun bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql: begin sync log: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UTC()

	var (
		activeID  string
		startedAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT run_id, started_at FROM sync_logs WHERE shop = ? AND status = ? ORDER BY started_at DESC LIMIT 1 FOR UPDATE`,
		shop, StatusInProgress,
	).Scan(&activeID, &startedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("mysql: check running sync shop=%s: %w", shop, err)
	case now.Sub(startedAt) < r.staleAfter:
		return fmt.Errorf("shop %s run %s started %s: %w", shop, activeID, startedAt.Format(time.RFC3339), ErrRunInProgress)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE sync_logs SET status = ?, message = ?, completed_at = ? WHERE shop = ? AND status = ?`,
			StatusFailed, "stale run lock released", now, shop, StatusInProgress,
		); err != nil {
			return fmt.Errorf("mysql: release stale sync shop=%s: %w", shop, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_logs (run_id, shop, status, dry_run, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, shop, StatusInProgress, dryRun, now,
	); err != nil {
		return fmt.Errorf("mysql: insert sync log run=%s: %w", runID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mysql: commit sync log run=%s: %w", runID, err)
	}
	return nil
}

// Complete stores the result of a run begun with the same RunID.
func (r *SyncLogRepository) Complete(ctx context.Context, result model.SyncResult) error {
	status := StatusFailed
	if result.Success {
		status = StatusSucceeded
	}
	pricesUsed, err := json.Marshal(result.PricesUsed)
	if err != nil {
		return fmt.Errorf("mysql: encode prices used run=%s: %w", result.RunID, err)
	}
	triggered := result.StopLossTriggered
	if triggered == nil {
		triggered = []string{}
	}
	stopLoss, err := json.Marshal(triggered)
	if err != nil {
		return fmt.Errorf("mysql: encode stop loss run=%s: %w", result.RunID, err)
	}
	completedAt := result.CompletedAt
	if completedAt.IsZero() {
		completedAt = r.now()
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_logs SET status = ?, items_updated = ?, skipped_variants = ?, failed_groups = ?,
			prices_used = ?, stop_loss_triggered = ?, message = ?, completed_at = ? WHERE run_id = ?`,
		status, result.ItemsUpdated, result.SkippedVariants, result.FailedGroups,
		string(pricesUsed), string(stopLoss), result.Message, completedAt.UTC(), result.RunID,
	)
	if err != nil {
		return fmt.Errorf("mysql: complete sync log run=%s: %w", result.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mysql: sync log run=%s not found", result.RunID)
	}
	return nil
}

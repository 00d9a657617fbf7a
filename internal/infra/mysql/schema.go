package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS merchant_settings (
		shop VARCHAR(255) NOT NULL PRIMARY KEY,
		markup_percent DECIMAL(10,4) NOT NULL DEFAULT 0,
		currency VARCHAR(3) NULL,
		goldapi_key VARCHAR(255) NULL,
		stop_loss JSON NULL,
		write_breakdown TINYINT(1) NOT NULL DEFAULT 0,
		formula JSON NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sync_logs (
		run_id CHAR(36) NOT NULL PRIMARY KEY,
		shop VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL,
		dry_run TINYINT(1) NOT NULL DEFAULT 0,
		items_updated INT NOT NULL DEFAULT 0,
		skipped_variants INT NOT NULL DEFAULT 0,
		failed_groups INT NOT NULL DEFAULT 0,
		prices_used JSON NULL,
		stop_loss_triggered JSON NULL,
		message TEXT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NULL,
		INDEX idx_sync_logs_shop_status (shop, status, started_at)
	)`,
}

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql migrate: %w", err)
		}
	}
	return nil
}

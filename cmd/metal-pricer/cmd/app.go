package cmd

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"metal-pricer/internal/adapters/goldapi"
	"metal-pricer/internal/adapters/shopify"
	"metal-pricer/internal/config"
	infrahttp "metal-pricer/internal/infra/http"
	"metal-pricer/internal/infra/mysql"
	"metal-pricer/internal/logging"
)

type app struct {
	cfg     *config.Config
	zap     *zap.Logger
	logger  logging.LoggerService
	shopify *shopify.Client
	goldapi *goldapi.Client

	db       *sql.DB
	settings *mysql.SettingsRepository
	syncLog  *mysql.SyncLogRepository
}

func applyLogFlags(cfg config.LogConfig) logging.Config {
	out := logging.Config{Level: cfg.Level, Format: cfg.Format}
	if logLevel != "" {
		out.Level = logLevel
	}
	if logFormat != "" {
		out.Format = logFormat
	}
	return out
}

// newApp wires the clients from the environment. MySQL is optional and is
// only opened when configured.
func newApp() (*app, error) {
	cfg, err := config.LoadForSync()
	if err != nil {
		return nil, err
	}

	zl := logging.NewZap(applyLogFlags(cfg.Log))
	httpClient := infrahttp.NewClient(maxDuration(cfg.Shopify.Timeout, cfg.GoldAPI.Timeout))

	sinks := []logging.LoggerService{logging.NewLogger(zl)}
	if tg := logging.NewTelegramNotifier(cfg.TelegramBot, httpClient); tg != nil {
		sinks = append(sinks, tg)
	}
	logger := logging.Multi(sinks...)

	a := &app{
		cfg:    cfg,
		zap:    zl,
		logger: logger,
		shopify: shopify.NewClient(cfg.Shopify, httpClient, logger, shopify.WithRetryPolicy(shopify.RetryPolicy{
			MaxAttempts: cfg.Sync.RetryAttempts,
			BaseDelay:   cfg.Sync.RetryBaseDelay,
		})),
		goldapi: goldapi.NewClient(cfg.GoldAPI, httpClient, logger),
	}

	if cfg.Mysql.Enabled() {
		db, err := mysql.New(cfg.Mysql)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.settings = mysql.NewSettingsRepository(db)
		a.syncLog = mysql.NewSyncLogRepository(db, cfg.Sync.LockStaleAfter)
	}
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.zap.Sync()
}

func maxDuration(a, b time.Duration) time.Duration {
	if a >= b {
		return a
	}
	return b
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIVersion = "2024-07"
	defaultProductTag = "auto_price_update"
	defaultGoldAPIURL = "https://www.goldapi.io/api"
)

// LoadEnvFile loads .env outside production. A missing file is not an error.
func LoadEnvFile(path string) {
	if os.Getenv("ENV") == "production" {
		return
	}
	if path == "" {
		path = ".env"
	}
	_ = godotenv.Load(path)
}

// LoadForSync reads the configuration of the price sync job.
func LoadForSync() (*Config, error) {
	var (
		cfg Config
		err error
	)

	if cfg.Shopify.ShopDomain, err = requriedString("SHOPIFY_SHOP_DOMAIN"); err != nil {
		return nil, err
	}
	if cfg.Shopify.Token, err = requriedString("SHOPIFY_TOKEN"); err != nil {
		return nil, err
	}
	cfg.Shopify.APIVer = stringWithDefault("SHOPIFY_API_VERSION", defaultAPIVersion)
	cfg.Shopify.ProductTag = stringWithDefault("SHOPIFY_PRODUCT_TAG", defaultProductTag)
	if cfg.Shopify.Timeout, err = durationWithDefault("SHOPIFY_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.GoldAPI.BaseUrl = stringWithDefault("GOLDAPI_BASE_URL", defaultGoldAPIURL)
	cfg.GoldAPI.Key = stringWithDefault("GOLDAPI_KEY", "")
	if cfg.GoldAPI.Timeout, err = durationWithDefault("GOLDAPI_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.GoldAPI.CacheTTL, err = durationWithDefault("GOLDAPI_CACHE_TTL", 60*time.Second); err != nil {
		return nil, err
	}

	cfg.Mysql.Host = stringWithDefault("MYSQL_HOST", "")
	if cfg.Mysql.Port, err = intWithDefault("MYSQL_PORT", 3306); err != nil {
		return nil, err
	}
	cfg.Mysql.Username = stringWithDefault("MYSQL_USER", "")
	cfg.Mysql.Password = stringWithDefault("MYSQL_PASSWORD", "")
	cfg.Mysql.Database = stringWithDefault("MYSQL_DATABASE", "")

	cfg.TelegramBot.ChatId = stringWithDefault("TELEGRAM_CHAT_ID", "")
	cfg.TelegramBot.Token = stringWithDefault("TELEGRAM_TOKEN", "")

	cfg.Log = LoadLogConfig()

	if cfg.Sync, err = loadSync(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadSync() (SyncConfig, error) {
	var (
		sync SyncConfig
		err  error
	)
	if sync.MarkupPercent, err = floatWithDefault("SYNC_MARKUP_PERCENT", 0); err != nil {
		return SyncConfig{}, err
	}
	sync.Currency = stringWithDefault("SYNC_CURRENCY", "")
	if sync.DryRun, err = boolWithDefault("SYNC_DRY_RUN", false); err != nil {
		return SyncConfig{}, err
	}
	if sync.WriteBreakdown, err = boolWithDefault("SYNC_WRITE_BREAKDOWN", false); err != nil {
		return SyncConfig{}, err
	}
	sync.FormulaFile = stringWithDefault("SYNC_FORMULA_FILE", "")
	if sync.StopLoss, err = ParseStopLoss(stringWithDefault("SYNC_STOP_LOSS", "")); err != nil {
		return SyncConfig{}, err
	}
	if sync.RetryAttempts, err = intWithDefault("SYNC_RETRY_ATTEMPTS", 3); err != nil {
		return SyncConfig{}, err
	}
	if sync.RetryAttempts < 1 {
		return SyncConfig{}, fmt.Errorf("SYNC_RETRY_ATTEMPTS must be at least 1")
	}
	if sync.RetryBaseDelay, err = durationWithDefault("SYNC_RETRY_BASE_DELAY", time.Second); err != nil {
		return SyncConfig{}, err
	}
	if sync.LockStaleAfter, err = durationWithDefault("SYNC_LOCK_STALE_AFTER", 15*time.Minute); err != nil {
		return SyncConfig{}, err
	}
	return sync, nil
}

// LoadLogConfig reads only the logging variables, for commands that do not
// talk to Shopify.
func LoadLogConfig() LogConfig {
	return LogConfig{
		Level:  stringWithDefault("LOG_LEVEL", "info"),
		Format: stringWithDefault("LOG_FORMAT", "console"),
	}
}

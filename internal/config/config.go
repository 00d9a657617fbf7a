package config

import "time"

type Config struct {
	Shopify     ShopifyConfig
	GoldAPI     GoldAPIConfig
	Mysql       MysqlConfig
	TelegramBot TelegramBotConfig
	Log         LogConfig
	Sync        SyncConfig
}

type ShopifyConfig struct {
	ShopDomain string
	Token      string
	APIVer     string
	ProductTag string
	Timeout    time.Duration
}

type GoldAPIConfig struct {
	BaseUrl  string
	Key      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type MysqlConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// Enabled reports whether enough is set to open a connection.
func (c MysqlConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Database != ""
}

type TelegramBotConfig struct {
	ChatId string
	Token  string
}

type LogConfig struct {
	Level  string
	Format string
}

type SyncConfig struct {
	MarkupPercent  float64
	Currency       string
	DryRun         bool
	WriteBreakdown bool
	FormulaFile    string
	StopLoss       map[string]float64
	RetryAttempts  int
	RetryBaseDelay time.Duration
	LockStaleAfter time.Duration
}

// Package mysql stores merchant settings and the sync audit log.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"metal-pricer/internal/config"
)

func New(cfg config.MysqlConfig) (*sql.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)

	if err != nil {
		return nil, fmt.Errorf("mysql connection error %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errDb := db.PingContext(ctx)

	if errDb != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping %w", errDb)
	}

	return db, nil
}

// DSN builds the driver connection string. Times are parsed as UTC.
func DSN(cfg config.MysqlConfig) (string, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Database == "" {
		return "", fmt.Errorf("Host or Username or Database values is empty")
	}

	if cfg.Port == 0 {
		cfg.Port = 3306
	}

	dc := mysqldriver.NewConfig()
	dc.User = cfg.Username
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dc.DBName = cfg.Database
	dc.ParseTime = true
	dc.Loc = time.UTC
	return dc.FormatDSN(), nil
}

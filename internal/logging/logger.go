// Package logging provides the LoggerService used across the sync jobs.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerService interface {
	Log(value string)
	LogError(value string, err error)
	LogWarning(value string)
	LogSuccess(value string)
}

// Config contains logging configuration
type Config struct {
	// Level is the minimum log level
	Level string

	// Format is the output format (json, console)
	Format string
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "console"}
}

// NewZap builds a zap logger writing to stderr.
func NewZap(cfg Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

type zapLogger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) LoggerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &zapLogger{log: log}
}

func (l *zapLogger) Log(value string) {
	l.log.Info(value)
}

func (l *zapLogger) LogError(value string, err error) {
	if err == nil {
		l.log.Error(value)
		return
	}
	l.log.Error(value, zap.Error(err))
}

func (l *zapLogger) LogWarning(value string) {
	l.log.Warn(value)
}

func (l *zapLogger) LogSuccess(value string) {
	l.log.Info(value, zap.Bool("success", true))
}

type multiLogger []LoggerService

// Multi fans every message out to all non-nil loggers.
func Multi(loggers ...LoggerService) LoggerService {
	out := make(multiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m multiLogger) Log(value string) {
	for _, l := range m {
		l.Log(value)
	}
}

func (m multiLogger) LogError(value string, err error) {
	for _, l := range m {
		l.LogError(value, err)
	}
}

func (m multiLogger) LogWarning(value string) {
	for _, l := range m {
		l.LogWarning(value)
	}
}

func (m multiLogger) LogSuccess(value string) {
	for _, l := range m {
		l.LogSuccess(value)
	}
}

// Nop discards everything.
func Nop() LoggerService {
	return NewLogger(zap.NewNop())
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func requriedString(key string) (string, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return "", fmt.Errorf("missing requried env var: %s", key)
	}
	return variable, nil
}

func stringWithDefault(key, def string) string {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def
	}
	return variable
}

func intWithDefault(key string, def int) (int, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	number, err := strconv.Atoi(strings.TrimSpace(variable))
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return number, nil
}

func floatWithDefault(key string, def float64) (float64, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(variable), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %w", key, err)
	}
	return number, nil
}

func boolWithDefault(key string, def bool) (bool, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(variable))
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %w", key, err)
	}
	return value, nil
}

// durationWithDefault accepts Go durations ("1500ms") or plain seconds.
func durationWithDefault(key string, def time.Duration) (time.Duration, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	variable = strings.TrimSpace(variable)
	if seconds, err := strconv.Atoi(variable); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(variable)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// ParseStopLoss parses "XAU=45.5,XAG=0.8". Codes are upper-cased.
func ParseStopLoss(value string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, raw, ok := strings.Cut(part, "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, fmt.Errorf("invalid stop loss entry %q", part)
		}
		floor, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid stop loss for %s: %w", code, err)
		}
		out[code] = floor
	}
	return out, nil
}

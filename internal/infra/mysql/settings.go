package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"metal-pricer/internal/domain/model"
)

var ErrSettingsNotFound = errors.New("merchant settings not found")

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

const selectSettings = `SELECT markup_percent, currency, goldapi_key, stop_loss, write_breakdown, formula
	FROM merchant_settings WHERE shop = ?`

func (r *SettingsRepository) Get(ctx context.Context, shop string) (model.MerchantSettings, error) {
	var (
		markup         sql.NullFloat64
		currency       sql.NullString
		apiKey         sql.NullString
		stopLoss       []byte
		writeBreakdown sql.NullBool
		formula        []byte
	)
	err := r.db.QueryRowContext(ctx, selectSettings, shop).
		Scan(&markup, &currency, &apiKey, &stopLoss, &writeBreakdown, &formula)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MerchantSettings{}, fmt.Errorf("shop %s: %w", shop, ErrSettingsNotFound)
	}
	if err != nil {
		return model.MerchantSettings{}, fmt.Errorf("mysql: read settings shop=%s: %w", shop, err)
	}

	settings := model.MerchantSettings{
		Shop:       shop,
		Currency:   strings.ToUpper(strings.TrimSpace(currency.String)),
		GoldAPIKey: strings.TrimSpace(apiKey.String),
	}
	if markup.Valid {
		v := markup.Float64
		settings.MarkupPercent = &v
	}
	if writeBreakdown.Valid {
		v := writeBreakdown.Bool
		settings.WriteBreakdown = &v
	}
	if len(stopLoss) > 0 && string(stopLoss) != "null" {
		floors := make(map[string]float64)
		if err := json.Unmarshal(stopLoss, &floors); err != nil {
			return model.MerchantSettings{}, fmt.Errorf("mysql: stop_loss shop=%s: %w", shop, err)
		}
		settings.StopLoss = make(model.StopLossConfig, len(floors))
		for code, floor := range floors {
			settings.StopLoss[strings.ToUpper(strings.TrimSpace(code))] = floor
		}
	}
	if len(formula) > 0 && string(formula) != "null" {
		settings.Formula = formula
	}
	return settings, nil
}

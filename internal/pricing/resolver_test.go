package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metal-pricer/internal/domain/model"
	"metal-pricer/internal/pricing/formula"
)

func str(v string) *string    { return &v }
func num(v float64) *float64 { return &v }

func goldItem() model.CatalogItem {
	return model.CatalogItem{
		ID:    "gid://shopify/Product/1",
		Title: "Ring",
		Attributes: model.Attributes{
			MetalType:    str("XAU"),
			Purity:       num(18),
			WeightGrams:  num(10),
			MakingCharge: num(50),
		},
		Variants: []model.Variant{{ID: "gid://shopify/ProductVariant/11"}},
	}
}

func TestMaxPurity(t *testing.T) {
	assert.Equal(t, 24.0, MaxPurity("XAU"))
	assert.Equal(t, 999.0, MaxPurity("XAG"))
	assert.Equal(t, 999.0, MaxPurity("xpt"))
	assert.Equal(t, 999.0, MaxPurity("XPD"))
	assert.Equal(t, 24.0, MaxPurity("XCU"))
}

func TestResolveAndPrice_LegacyFormula(t *testing.T) {
	item := goldItem()
	priced, err := ResolveAndPrice(item, item.Variants[0], map[string]float64{"XAU": 100}, 10, nil)
	require.NoError(t, err)

	assert.Equal(t, 880.0, priced.Price)
	assert.Equal(t, "880.00", priced.PriceString())
	assert.Equal(t, "XAU", priced.MetalType)
	require.Len(t, priced.Breakdown, 3)
	assert.Equal(t, 750.0, priced.Breakdown[0].Value)
	assert.Equal(t, 130.0, priced.Breakdown[1].Value)
	assert.Equal(t, LegacyFinalPriceID, priced.Breakdown[2].StepID)
	assert.Equal(t, 880.0, priced.Breakdown[2].Value)
}

func TestResolveAndPrice_Pipeline(t *testing.T) {
	item := goldItem()
	item.Attributes.Extra = map[string]float64{"stone_charge": 20}

	priced, err := ResolveAndPrice(item, item.Variants[0], map[string]float64{"XAU": 100}, 10, formula.DefaultPipeline())
	require.NoError(t, err)

	// (750 + 50 + 20) * 1.10
	assert.Equal(t, 902.0, priced.Price)
	stone, ok := priced.Breakdown.Get("stone_charge")
	require.True(t, ok)
	assert.Equal(t, 20.0, stone.Value)
}

func TestResolveAndPrice_VariantOverrideWins(t *testing.T) {
	item := goldItem()
	variant := model.Variant{
		ID:         "gid://shopify/ProductVariant/12",
		Attributes: model.Attributes{Purity: num(24)},
	}

	priced, err := ResolveAndPrice(item, variant, map[string]float64{"XAU": 100}, 0, nil)
	require.NoError(t, err)
	// 100 * 24/24 * 10 + 50
	assert.Equal(t, 1050.0, priced.Price)
}

func TestEffectiveAttributes_InvalidOverrideFallsBack(t *testing.T) {
	item := goldItem()
	variant := model.Variant{Attributes: model.Attributes{
		MetalType:   str("  "),
		Purity:      num(0),
		WeightGrams: num(math.NaN()),
		Extra:       map[string]float64{"stone_charge": 5},
	}}

	attrs := EffectiveAttributes(item, variant)
	require.NotNil(t, attrs.MetalType)
	assert.Equal(t, "XAU", *attrs.MetalType)
	assert.Equal(t, 18.0, *attrs.Purity)
	assert.Equal(t, 10.0, *attrs.WeightGrams)
	assert.Equal(t, map[string]float64{"stone_charge": 5}, attrs.Extra)
}

func TestResolveAndPrice_Skips(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CatalogItem)
		prices map[string]float64
		reason string
	}{
		{
			name:   "missing metal",
			mutate: func(i *model.CatalogItem) { i.Attributes.MetalType = nil },
			prices: map[string]float64{"XAU": 100},
			reason: "missing metal type",
		},
		{
			name:   "missing purity on item and variant",
			mutate: func(i *model.CatalogItem) { i.Attributes.Purity = nil },
			prices: map[string]float64{"XAU": 100},
			reason: "missing or non-positive purity",
		},
		{
			name:   "negative weight",
			mutate: func(i *model.CatalogItem) { i.Attributes.WeightGrams = num(-1) },
			prices: map[string]float64{"XAU": 100},
			reason: "missing or non-positive weight",
		},
		{
			name:   "no market price",
			mutate: func(i *model.CatalogItem) {},
			prices: map[string]float64{"XAG": 1},
			reason: "no market price for XAU",
		},
		{
			name:   "negative price",
			mutate: func(i *model.CatalogItem) { i.Attributes.MakingCharge = num(-10000) },
			prices: map[string]float64{"XAU": 100},
			reason: "invalid price -9250",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := goldItem()
			tt.mutate(&item)
			_, err := ResolveAndPrice(item, item.Variants[0], tt.prices, 0, nil)

			var skip *SkipError
			require.ErrorAs(t, err, &skip)
			assert.Equal(t, tt.reason, skip.Reason)
			assert.Equal(t, item.Variants[0].ID, skip.VariantID)
		})
	}
}

func TestResolveAndPrice_PipelineNegativeIsSkipped(t *testing.T) {
	item := goldItem()
	p := formula.Pipeline{formula.Fixed{ID: "refund", Source: formula.FixedConstant, Default: -1}}

	_, err := ResolveAndPrice(item, item.Variants[0], map[string]float64{"XAU": 100}, 0, p)
	var skip *SkipError
	require.ErrorAs(t, err, &skip)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "12.50", FormatMoney(12.5))
	assert.Equal(t, "0.00", FormatMoney(0))
	assert.Equal(t, "1234.57", FormatMoney(1234.567))
}

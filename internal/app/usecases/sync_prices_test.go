package usecases

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metal-pricer/internal/adapters/shopify"
	"metal-pricer/internal/domain/model"
	"metal-pricer/internal/logging"
	"metal-pricer/internal/pricing"
	"metal-pricer/internal/pricing/formula"
)

type fakeCatalog struct {
	items []model.CatalogItem
	err   error
	panic any
	calls int
}

func (f *fakeCatalog) FetchTaggedProducts(ctx context.Context) ([]model.CatalogItem, error) {
	f.calls++
	if f.panic != nil {
		panic(f.panic)
	}
	return f.items, f.err
}

type fakeMarket struct {
	prices   map[string]float64
	err      error
	calls    int
	codes    []string
	currency string
	apiKey   string
}

func (f *fakeMarket) FetchPrices(ctx context.Context, currency, apiKey string, codes []string) (map[string]float64, error) {
	f.calls++
	f.codes = codes
	f.currency = currency
	f.apiKey = apiKey
	return f.prices, f.err
}

type fakeWriter struct {
	failProducts map[string]bool
	mutations    []model.PriceMutation
	dryRun       bool
	calls        int
}

func (f *fakeWriter) UpdateVariantPrices(ctx context.Context, mutations []model.PriceMutation, dryRun bool) shopify.WriteResult {
	f.calls++
	f.mutations = mutations
	f.dryRun = dryRun

	result := shopify.WriteResult{DryRun: dryRun}
	index := map[string]int{}
	for _, m := range mutations {
		i, ok := index[m.ProductID]
		if !ok {
			i = len(result.Groups)
			index[m.ProductID] = i
			g := shopify.GroupResult{ProductID: m.ProductID, Attempts: 1}
			if f.failProducts[m.ProductID] && !dryRun {
				g.Err = errors.New("retries exhausted after 3 attempts")
			}
			result.Groups = append(result.Groups, g)
		}
		result.Groups[i].VariantIDs = append(result.Groups[i].VariantIDs, m.VariantID)
		if result.Groups[i].Err != nil {
			result.Failed++
		} else {
			result.Updated++
		}
	}
	return result
}

type fakeBreakdowns struct {
	calls     int
	mutations []model.PriceMutation
}

func (f *fakeBreakdowns) WriteBreakdownMetafields(ctx context.Context, mutations []model.PriceMutation) shopify.MetafieldWriteResult {
	f.calls++
	f.mutations = mutations
	return shopify.MetafieldWriteResult{Written: len(mutations)}
}

func str(v string) *string    { return &v }
func num(v float64) *float64 { return &v }

func goldRing(id string, variants ...model.Variant) model.CatalogItem {
	return model.CatalogItem{
		ID:    "gid://shopify/Product/" + id,
		Title: "Ring " + id,
		Attributes: model.Attributes{
			MetalType:    str("XAU"),
			Purity:       num(18),
			WeightGrams:  num(10),
			MakingCharge: num(50),
		},
		Variants: variants,
	}
}

func variant(id string) model.Variant {
	return model.Variant{ID: "gid://shopify/ProductVariant/" + id, Price: "1.00"}
}

type harness struct {
	catalog    *fakeCatalog
	market     *fakeMarket
	writer     *fakeWriter
	breakdowns *fakeBreakdowns
	sync       *SyncPrices
}

func newHarness(items []model.CatalogItem, prices map[string]float64) *harness {
	h := &harness{
		catalog:    &fakeCatalog{items: items},
		market:     &fakeMarket{prices: prices},
		writer:     &fakeWriter{},
		breakdowns: &fakeBreakdowns{},
	}
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h.sync = NewSyncPrices(h.catalog, h.writer, h.breakdowns, h.market, logging.Nop()).(*SyncPrices)
	h.sync.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	h.sync.newRunID = func() string { return "run-1" }
	return h
}

func baseInput() SyncInput {
	return SyncInput{
		Shop:                "demo.myshopify.com",
		GlobalMarkupPercent: 10,
		Currency:            "usd",
		MarketAPIKey:        "key",
	}
}

func TestRun_ZeroItemsSkipsPriceFetch(t *testing.T) {
	h := newHarness(nil, nil)

	result := h.sync.Run(context.Background(), baseInput())

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ItemsUpdated)
	assert.Equal(t, 0, h.market.calls)
	assert.Equal(t, 0, h.writer.calls)
	assert.Equal(t, "run-1", result.RunID)
	assert.True(t, result.CompletedAt.After(result.StartedAt))
}

func TestRun_LegacyFormula(t *testing.T) {
	h := newHarness([]model.CatalogItem{goldRing("1", variant("11"))}, map[string]float64{"XAU": 100})

	result := h.sync.Run(context.Background(), baseInput())

	require.True(t, result.Success, result.Message)
	assert.Equal(t, 1, result.ItemsUpdated)
	assert.Equal(t, []string{"XAU"}, h.market.codes)
	assert.Equal(t, "USD", h.market.currency)
	assert.Equal(t, "key", h.market.apiKey)
	require.Len(t, h.writer.mutations, 1)
	m := h.writer.mutations[0]
	assert.Equal(t, "880.00", m.Price)
	assert.Equal(t, "gid://shopify/Product/1", m.ProductID)
	assert.Len(t, m.Breakdown, 3)
	assert.Equal(t, map[string]float64{"XAU": 100}, result.PricesUsed)
	assert.Empty(t, result.StopLossTriggered)
}

func TestRun_VariantOverrideAndSkips(t *testing.T) {
	override := variant("12")
	override.Attributes.Purity = num(24)
	noMetal := model.CatalogItem{ID: "gid://shopify/Product/2", Variants: []model.Variant{variant("21")}}
	items := []model.CatalogItem{goldRing("1", variant("11"), override), noMetal}
	h := newHarness(items, map[string]float64{"XAU": 100})

	result := h.sync.Run(context.Background(), baseInput())

	require.True(t, result.Success)
	assert.Equal(t, 2, result.ItemsUpdated)
	assert.Equal(t, 1, result.SkippedVariants)
	require.Len(t, h.writer.mutations, 2)
	assert.Equal(t, "880.00", h.writer.mutations[0].Price)
	assert.Equal(t, "1155.00", h.writer.mutations[1].Price)
}

func TestRun_StopLoss(t *testing.T) {
	tests := []struct {
		name      string
		live      float64
		floor     float64
		wantPrice float64
		triggered []string
	}{
		{name: "below floor", live: 40, floor: 45, wantPrice: 45, triggered: []string{"XAU"}},
		{name: "above floor", live: 50, floor: 45, wantPrice: 50, triggered: []string{}},
		{name: "equal to floor", live: 45, floor: 45, wantPrice: 45, triggered: []string{}},
		{name: "zero floor", live: 40, floor: 0, wantPrice: 40, triggered: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness([]model.CatalogItem{goldRing("1", variant("11"), variant("12"))}, map[string]float64{"XAU": tt.live})
			in := baseInput()
			in.GlobalMarkupPercent = 0
			in.StopLoss = model.StopLossConfig{"xau": tt.floor}

			result := h.sync.Run(context.Background(), in)

			require.True(t, result.Success)
			assert.Equal(t, tt.wantPrice, result.PricesUsed["XAU"])
			assert.Equal(t, tt.triggered, result.StopLossTriggered)
			for _, m := range h.writer.mutations {
				want := tt.wantPrice*18/24*10 + 50
				assert.Equal(t, formula.Round2(want), m.Breakdown[2].Value)
			}
		})
	}
}

func TestRun_Pipeline(t *testing.T) {
	item := goldRing("1", variant("11"))
	item.Attributes.Extra = map[string]float64{"stone_charge": 20}
	h := newHarness([]model.CatalogItem{item}, map[string]float64{"XAU": 100})
	in := baseInput()
	in.Pipeline = formula.DefaultPipeline()

	result := h.sync.Run(context.Background(), in)

	require.True(t, result.Success, result.Message)
	require.Len(t, h.writer.mutations, 1)
	final, ok := h.writer.mutations[0].Breakdown.Get(formula.FinalPriceID)
	require.True(t, ok)
	assert.Equal(t, h.writer.mutations[0].Price, pricing.FormatMoney(final.Value))
}

func TestRun_InvalidInputRejectedBeforeIO(t *testing.T) {
	tests := map[string]func(in *SyncInput){
		"bad pipeline": func(in *SyncInput) {
			in.Pipeline = formula.Pipeline{formula.Sum{ID: "final_price", Components: []string{"ghost"}}}
		},
		"nan markup":    func(in *SyncInput) { in.GlobalMarkupPercent = math.NaN() },
		"no currency":   func(in *SyncInput) { in.Currency = "" },
		"inf stop loss": func(in *SyncInput) { in.StopLoss = model.StopLossConfig{"XAU": math.Inf(1)} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness([]model.CatalogItem{goldRing("1", variant("11"))}, map[string]float64{"XAU": 100})
			in := baseInput()
			mutate(&in)

			result := h.sync.Run(context.Background(), in)

			assert.False(t, result.Success)
			assert.Contains(t, result.Message, "invalid sync input")
			assert.Equal(t, 0, h.catalog.calls)
		})
	}
}

func TestRun_FatalSteps(t *testing.T) {
	t.Run("catalog read failure", func(t *testing.T) {
		h := newHarness(nil, nil)
		h.catalog.err = shopify.ErrMalformedPage

		result := h.sync.Run(context.Background(), baseInput())
		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "catalog read failed")
		assert.Equal(t, 0, h.market.calls)
	})

	t.Run("no metal codes", func(t *testing.T) {
		item := model.CatalogItem{ID: "gid://shopify/Product/1", Variants: []model.Variant{variant("11")}}
		h := newHarness([]model.CatalogItem{item}, nil)

		result := h.sync.Run(context.Background(), baseInput())
		assert.False(t, result.Success)
		assert.Equal(t, 0, h.market.calls)
	})

	t.Run("market failure", func(t *testing.T) {
		h := newHarness([]model.CatalogItem{goldRing("1", variant("11"))}, nil)
		h.market.err = errors.New("goldapi RATE_LIMITED")

		result := h.sync.Run(context.Background(), baseInput())
		assert.False(t, result.Success)
		assert.Equal(t, 0, result.ItemsUpdated)
		assert.Equal(t, 0, h.writer.calls)
	})

	t.Run("market returns nothing usable", func(t *testing.T) {
		h := newHarness([]model.CatalogItem{goldRing("1", variant("11"))}, map[string]float64{"XAG": 1})

		result := h.sync.Run(context.Background(), baseInput())
		assert.False(t, result.Success)
		assert.Equal(t, 0, h.writer.calls)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		h := newHarness(nil, nil)
		h.catalog.panic = "nil map"

		result := h.sync.Run(context.Background(), baseInput())
		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "nil map")
		assert.False(t, result.CompletedAt.IsZero())
	})
}

func TestRun_FailedGroupDoesNotAbortOthers(t *testing.T) {
	items := []model.CatalogItem{goldRing("1", variant("11")), goldRing("2", variant("21"), variant("22"))}
	h := newHarness(items, map[string]float64{"XAU": 100})
	h.writer.failProducts = map[string]bool{"gid://shopify/Product/1": true}
	in := baseInput()
	in.WriteBreakdownMetadata = true

	result := h.sync.Run(context.Background(), in)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.ItemsUpdated)
	assert.Equal(t, 1, result.FailedGroups)
	require.Equal(t, 1, h.breakdowns.calls)
	require.Len(t, h.breakdowns.mutations, 2)
	assert.Equal(t, "gid://shopify/Product/2", h.breakdowns.mutations[0].ProductID)
}

func TestRun_BreakdownMetadata(t *testing.T) {
	items := []model.CatalogItem{goldRing("1", variant("11"))}

	t.Run("written when enabled", func(t *testing.T) {
		h := newHarness(items, map[string]float64{"XAU": 100})
		in := baseInput()
		in.WriteBreakdownMetadata = true

		h.sync.Run(context.Background(), in)
		assert.Equal(t, 1, h.breakdowns.calls)
	})

	t.Run("skipped in dry run", func(t *testing.T) {
		h := newHarness(items, map[string]float64{"XAU": 100})
		in := baseInput()
		in.WriteBreakdownMetadata = true
		in.DryRun = true

		result := h.sync.Run(context.Background(), in)
		assert.True(t, result.Success)
		assert.True(t, result.DryRun)
		assert.True(t, h.writer.dryRun)
		assert.Equal(t, 1, result.ItemsUpdated)
		assert.Equal(t, 0, h.breakdowns.calls)
	})

	t.Run("skipped when disabled", func(t *testing.T) {
		h := newHarness(items, map[string]float64{"XAU": 100})

		h.sync.Run(context.Background(), baseInput())
		assert.Equal(t, 0, h.breakdowns.calls)
	})
}

func TestRun_NothingPriceable(t *testing.T) {
	item := goldRing("1", variant("11"))
	item.Attributes.WeightGrams = nil
	h := newHarness([]model.CatalogItem{item}, map[string]float64{"XAU": 100})

	result := h.sync.Run(context.Background(), baseInput())

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ItemsUpdated)
	assert.Equal(t, 1, result.SkippedVariants)
}

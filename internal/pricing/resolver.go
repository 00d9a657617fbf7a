// Package pricing turns a catalog variant and market prices into a price.
package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"metal-pricer/internal/domain/model"
	"metal-pricer/internal/pricing/formula"
)

const (
	defaultMaxPurity = 24

	// Breakdown ids of the built-in formula.
	LegacyMetalCostID    = "metal_cost"
	LegacyMakingMarkupID = "making_markup"
	LegacyFinalPriceID   = formula.FinalPriceID

	// Attribute keys exposed to formula steps.
	AttrMetalPurity  = "metal_purity"
	AttrWeightGrams  = "weight_grams"
	AttrMakingCharge = formula.MakingChargeKey
)

var metalMaxPurity = map[string]float64{
	"XAU": 24,
	"XAG": 999,
	"XPT": 999,
	"XPD": 999,
}

// MaxPurity returns the purity scale of a metal: karats for gold, parts per
// thousand for the others.
func MaxPurity(metalCode string) float64 {
	if v, ok := metalMaxPurity[strings.ToUpper(strings.TrimSpace(metalCode))]; ok {
		return v
	}
	return defaultMaxPurity
}

// SkipError reports a variant that cannot be priced. It is never fatal to a
// sync run.
type SkipError struct {
	VariantID string
	Reason    string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("variant %s skipped: %s", e.VariantID, e.Reason)
}

type Priced struct {
	VariantID string
	MetalType string
	Price     float64
	Breakdown model.PriceBreakdown
	Anomalies []string
}

// PriceString formats the price the way the catalog API expects it.
func (p Priced) PriceString() string {
	return FormatMoney(p.Price)
}

// EffectiveAttributes merges variant overrides over item level values. An
// override that is present but invalid does not shadow the item value.
func EffectiveAttributes(item model.CatalogItem, variant model.Variant) model.Attributes {
	own := variant.Attributes
	parent := item.Attributes

	merged := model.Attributes{
		MetalType:    pickMetal(own.MetalType, parent.MetalType),
		Purity:       pickPositive(own.Purity, parent.Purity),
		WeightGrams:  pickPositive(own.WeightGrams, parent.WeightGrams),
		MakingCharge: pickFinite(own.MakingCharge, parent.MakingCharge),
	}
	if len(parent.Extra) > 0 || len(own.Extra) > 0 {
		merged.Extra = make(map[string]float64, len(parent.Extra)+len(own.Extra))
		for k, v := range parent.Extra {
			merged.Extra[k] = v
		}
		for k, v := range own.Extra {
			merged.Extra[k] = v
		}
	}
	return merged
}

// ResolveAndPrice prices one variant. A nil or empty pipeline selects the
// built-in formula (base + making charge) * (1 + markup/100).
func ResolveAndPrice(item model.CatalogItem, variant model.Variant, prices map[string]float64, globalMarkupPercent float64, pipeline formula.Pipeline) (Priced, error) {
	attrs := EffectiveAttributes(item, variant)
	skip := func(format string, args ...any) (Priced, error) {
		return Priced{}, &SkipError{VariantID: variant.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if attrs.MetalType == nil {
		return skip("missing metal type")
	}
	metal := *attrs.MetalType
	if attrs.Purity == nil {
		return skip("missing or non-positive purity")
	}
	if attrs.WeightGrams == nil {
		return skip("missing or non-positive weight")
	}
	makingCharge := 0.0
	if attrs.MakingCharge != nil {
		makingCharge = *attrs.MakingCharge
	}

	pricePerGram, ok := prices[metal]
	if !ok || !isFinite(pricePerGram) || pricePerGram <= 0 {
		return skip("no market price for %s", metal)
	}

	maxPurity := MaxPurity(metal)
	var (
		final     float64
		breakdown model.PriceBreakdown
		anomalies []string
	)

	if len(pipeline) > 0 {
		inputAttrs := make(map[string]float64, len(attrs.Extra)+3)
		for k, v := range attrs.Extra {
			inputAttrs[k] = v
		}
		inputAttrs[AttrMetalPurity] = *attrs.Purity
		inputAttrs[AttrWeightGrams] = *attrs.WeightGrams
		if attrs.MakingCharge != nil {
			inputAttrs[AttrMakingCharge] = makingCharge
		}

		result, err := formula.Evaluate(pipeline, formula.Inputs{
			PricePerGram:        pricePerGram,
			Purity:              *attrs.Purity,
			MaxPurity:           maxPurity,
			WeightGrams:         *attrs.WeightGrams,
			FixedChargeDefault:  makingCharge,
			GlobalMarkupPercent: globalMarkupPercent,
			Attributes:          inputAttrs,
		})
		if err != nil {
			return skip("%v", err)
		}
		final = result.FinalPrice
		breakdown = result.Breakdown
		anomalies = result.Anomalies
	} else {
		base := pricePerGram * (*attrs.Purity / maxPurity) * *attrs.WeightGrams
		final = formula.Round2((base + makingCharge) * (1 + globalMarkupPercent/100))
		breakdown = model.PriceBreakdown{
			{StepID: LegacyMetalCostID, Label: "Metal Cost", Value: formula.Round2(base)},
			{StepID: LegacyMakingMarkupID, Label: "Making Charge & Markup", Value: formula.Round2(final - base)},
			{StepID: LegacyFinalPriceID, Label: "Final Price", Value: final},
		}
	}

	if !isFinite(final) || final < 0 {
		return skip("invalid price %v", final)
	}

	return Priced{
		VariantID: variant.ID,
		MetalType: metal,
		Price:     final,
		Breakdown: breakdown,
		Anomalies: anomalies,
	}, nil
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

func pickMetal(own, parent *string) *string {
	for _, candidate := range []*string{own, parent} {
		if candidate == nil {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(*candidate))
		if code != "" {
			return &code
		}
	}
	return nil
}

func pickPositive(own, parent *float64) *float64 {
	for _, candidate := range []*float64{own, parent} {
		if candidate != nil && isFinite(*candidate) && *candidate > 0 {
			v := *candidate
			return &v
		}
	}
	return nil
}

func pickFinite(own, parent *float64) *float64 {
	for _, candidate := range []*float64{own, parent} {
		if candidate != nil && isFinite(*candidate) {
			v := *candidate
			return &v
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

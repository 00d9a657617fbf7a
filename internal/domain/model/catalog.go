package model

// Attributes is the pricing composition stored as metafields on a product or
// a variant. A nil field means the metafield is absent.
type Attributes struct {
	MetalType    *string
	Purity       *float64
	WeightGrams  *float64
	MakingCharge *float64

	// Extra holds every other numeric metafield of the owner.
	Extra map[string]float64
}

type Variant struct {
	ID         string
	Title      string
	Price      string
	Attributes Attributes
}

type CatalogItem struct {
	ID         string
	Title      string
	Attributes Attributes
	Variants   []Variant
}

// StopLossConfig maps a metal code to the minimum price per gram. Values <= 0
// mean no floor.
type StopLossConfig map[string]float64

// Floor returns the configured floor for code when one is active.
func (c StopLossConfig) Floor(code string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	floor, ok := c[code]
	if !ok || floor <= 0 {
		return 0, false
	}
	return floor, true
}

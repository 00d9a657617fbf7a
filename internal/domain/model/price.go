package model

import "time"

// BreakdownLine is one labeled intermediate value of a price computation.
type BreakdownLine struct {
	StepID string  `json:"id"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
}

// PriceBreakdown keeps the lines in the order the steps were evaluated.
type PriceBreakdown []BreakdownLine

func (b PriceBreakdown) Get(stepID string) (BreakdownLine, bool) {
	for _, line := range b {
		if line.StepID == stepID {
			return line, true
		}
	}
	return BreakdownLine{}, false
}

// PriceMutation is a computed price waiting to be written to a variant.
type PriceMutation struct {
	VariantID string
	ProductID string
	Price     string
	Breakdown PriceBreakdown
}

type SyncResult struct {
	RunID             string             `json:"runId"`
	Shop              string             `json:"shop,omitempty"`
	Success           bool               `json:"success"`
	DryRun            bool               `json:"dryRun"`
	ItemsUpdated      int                `json:"itemsUpdated"`
	SkippedVariants   int                `json:"skippedVariants"`
	FailedGroups      int                `json:"failedGroups"`
	PricesUsed        map[string]float64 `json:"pricesUsed"`
	StopLossTriggered []string           `json:"stopLossTriggered"`
	Message           string             `json:"message,omitempty"`
	StartedAt         time.Time          `json:"startedAt"`
	CompletedAt       time.Time          `json:"completedAt"`
}

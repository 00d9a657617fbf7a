package formula

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"metal-pricer/internal/domain/model"
)

var ErrInvalidResult = errors.New("formula produced an invalid price")

type Inputs struct {
	PricePerGram        float64
	Purity              float64
	MaxPurity           float64
	WeightGrams         float64
	FixedChargeDefault  float64
	GlobalMarkupPercent float64
	Attributes          map[string]float64
}

type Result struct {
	FinalPrice float64
	Breakdown  model.PriceBreakdown

	// Anomalies lists non-fatal problems met during evaluation.
	Anomalies []string
}

// Evaluate runs the pipeline over inputs. Non-finite step values are coerced
// to zero; a negative or non-finite final price fails with ErrInvalidResult.
func Evaluate(p Pipeline, in Inputs) (Result, error) {
	if len(p) == 0 {
		return Result{}, fmt.Errorf("%w: empty pipeline", ErrInvalidResult)
	}

	values := make(map[string]float64, len(p))
	breakdown := make(model.PriceBreakdown, 0, len(p))
	var anomalies []string
	var last float64

	for _, step := range p {
		if step == nil {
			continue
		}
		var value float64
		switch s := step.(type) {
		case Computed:
			if in.MaxPurity <= 0 {
				anomalies = append(anomalies, fmt.Sprintf("step %s: max purity %v is not positive", s.ID, in.MaxPurity))
				break
			}
			value = in.PricePerGram * (in.Purity / in.MaxPurity) * in.WeightGrams
		case Fixed:
			value = fixedValue(s, in)
		case Percentage:
			rate := s.Default
			if s.Source == RateGlobal {
				rate = in.GlobalMarkupPercent
			}
			value = values[s.AppliesTo] * rate / 100
		case Sum:
			for _, component := range s.Components {
				value += values[component]
			}
		}

		if math.IsNaN(value) || math.IsInf(value, 0) {
			anomalies = append(anomalies, fmt.Sprintf("step %s: non-finite value coerced to 0", step.StepID()))
			value = 0
		}

		values[step.StepID()] = value
		last = value
		breakdown = append(breakdown, model.BreakdownLine{
			StepID: step.StepID(),
			Label:  step.StepLabel(),
			Value:  Round2(value),
		})
	}

	final, ok := values[FinalPriceID]
	if !ok {
		final = last
	}
	if math.IsNaN(final) || math.IsInf(final, 0) || final < 0 {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidResult, final)
	}

	return Result{
		FinalPrice: Round2(final),
		Breakdown:  breakdown,
		Anomalies:  anomalies,
	}, nil
}

func fixedValue(s Fixed, in Inputs) float64 {
	if s.Source != FixedFromAttribute || s.AttributeKey == "" {
		return s.Default
	}
	if v, ok := in.Attributes[s.AttributeKey]; ok && !math.IsNaN(v) {
		return v
	}
	if s.AttributeKey == MakingChargeKey && in.FixedChargeDefault != 0 {
		return in.FixedChargeDefault
	}
	return s.Default
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

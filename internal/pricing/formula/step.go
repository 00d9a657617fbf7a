// Package formula evaluates merchant-defined pricing pipelines.
//
// A pipeline is an ordered list of steps drawn from a closed set of kinds.
// Evaluation is a single left-to-right pass; each step may read the values of
// steps evaluated before it.
package formula

type Kind string

const (
	KindComputed   Kind = "computed"
	KindFixed      Kind = "fixed"
	KindPercentage Kind = "percentage"
	KindSum        Kind = "sum"
)

// FinalPriceID is the step id whose value becomes the final price. When a
// pipeline has no such step the last step is used.
const FinalPriceID = "final_price"

// MakingChargeKey is the attribute key that falls back to
// Inputs.FixedChargeDefault when the attribute is absent.
const MakingChargeKey = "making_charge"

// Step is implemented only by Computed, Fixed, Percentage and Sum.
type Step interface {
	StepID() string
	StepLabel() string
	Kind() Kind
	isStep()
}

type Pipeline []Step

// Computed is the metal cost: pricePerGram * (purity / maxPurity) * weight.
type Computed struct {
	ID    string
	Label string
}

type FixedSource string

const (
	FixedFromAttribute FixedSource = "attribute"
	FixedConstant      FixedSource = "constant"
)

type Fixed struct {
	ID           string
	Label        string
	Source       FixedSource
	AttributeKey string
	Default      float64
}

type RateSource string

const (
	RateGlobal   RateSource = "global"
	RateConstant RateSource = "constant"
)

// Percentage takes Rate percent of the value of the step named by AppliesTo.
type Percentage struct {
	ID        string
	Label     string
	AppliesTo string
	Source    RateSource
	Default   float64
}

type Sum struct {
	ID         string
	Label      string
	Components []string
}

func (s Computed) StepID() string   { return s.ID }
func (s Fixed) StepID() string      { return s.ID }
func (s Percentage) StepID() string { return s.ID }
func (s Sum) StepID() string        { return s.ID }

func (s Computed) StepLabel() string   { return s.Label }
func (s Fixed) StepLabel() string      { return s.Label }
func (s Percentage) StepLabel() string { return s.Label }
func (s Sum) StepLabel() string        { return s.Label }

func (Computed) Kind() Kind   { return KindComputed }
func (Fixed) Kind() Kind      { return KindFixed }
func (Percentage) Kind() Kind { return KindPercentage }
func (Sum) Kind() Kind        { return KindSum }

func (Computed) isStep()   {}
func (Fixed) isStep()      {}
func (Percentage) isStep() {}
func (Sum) isStep()        {}

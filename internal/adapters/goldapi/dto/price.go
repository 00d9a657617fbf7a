package dto

// PriceResponse is the goldapi.io quote for one metal. Price is per troy
// ounce.
type PriceResponse struct {
	Metal     string   `json:"metal,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Price     *float64 `json:"price"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Error     string   `json:"error,omitempty"`
}

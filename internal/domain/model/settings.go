package model

// MerchantSettings are the per-shop sync settings. Nil fields were not set
// by the merchant and fall back to the environment.
type MerchantSettings struct {
	Shop           string
	MarkupPercent  *float64
	Currency       string
	GoldAPIKey     string
	StopLoss       StopLossConfig
	WriteBreakdown *bool
	Formula        []byte
}

package formula

// DefaultPipeline returns the pipeline used for new merchants.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Computed{ID: "metal_cost", Label: "Metal Cost"},
		Fixed{ID: "making_charge", Label: "Making Charge", Source: FixedFromAttribute, AttributeKey: "making_charge"},
		Percentage{ID: "wastage", Label: "Wastage", AppliesTo: "metal_cost", Source: RateConstant},
		Fixed{ID: "stone_charge", Label: "Stone/Diamond Charge", Source: FixedFromAttribute, AttributeKey: "stone_charge"},
		Sum{ID: "subtotal", Label: "Subtotal", Components: []string{"metal_cost", "making_charge", "wastage", "stone_charge"}},
		Percentage{ID: "tax", Label: "Tax/GST", AppliesTo: "subtotal", Source: RateConstant},
		Percentage{ID: "markup", Label: "Markup", AppliesTo: "subtotal", Source: RateGlobal},
		Sum{ID: FinalPriceID, Label: "Final Price", Components: []string{"subtotal", "tax", "markup"}},
	}
}

package dto

type MetafieldNode struct {
	Key   *string `json:"key"`
	Value *string `json:"value"`
	Type  string  `json:"type,omitempty"`
}

type MetafieldConnection struct {
	Nodes    []MetafieldNode  `json:"nodes,omitempty"`
	PageInfo *ShopifyPageInfo `json:"pageInfo,omitempty"`
}

type ShopifyVariant struct {
	ID         string              `json:"id,omitempty"`
	Title      string              `json:"title,omitempty"`
	Price      string              `json:"price,omitempty"`
	Metafields MetafieldConnection `json:"metafields,omitempty"`
}

type ShopifyVariantConnection struct {
	Nodes    []ShopifyVariant `json:"nodes,omitempty"`
	PageInfo *ShopifyPageInfo `json:"pageInfo,omitempty"`
}

type ShopifyProduct struct {
	ID         string                   `json:"id,omitempty"`
	Title      string                   `json:"title,omitempty"`
	Metafields MetafieldConnection      `json:"metafields,omitempty"`
	Variants   ShopifyVariantConnection `json:"variants,omitempty"`
}

// ProductPage keeps pointers so a missing field can be told apart from an
// empty one.
type ProductPage struct {
	Nodes    []ShopifyProduct `json:"nodes"`
	PageInfo *ShopifyPageInfo `json:"pageInfo"`
}

type ProductsQueryData struct {
	Products *ProductPage `json:"products"`
}

type ProductVariantsQueryData struct {
	Product *struct {
		Variants *ShopifyVariantConnection `json:"variants"`
	} `json:"product"`
}

type ProductVariantsBulkUpdateData struct {
	ProductVariantsBulkUpdate *struct {
		ProductVariants []struct {
			ID    string `json:"id,omitempty"`
			Price string `json:"price,omitempty"`
		} `json:"productVariants,omitempty"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"productVariantsBulkUpdate"`
}

type ShopQueryData struct {
	Shop *struct {
		CurrencyCode string `json:"currencyCode"`
	} `json:"shop"`
}

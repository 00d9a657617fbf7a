package dto

type MetafieldsSetData struct {
	MetafieldsSet *struct {
		Metafields []struct {
			ID  string `json:"id,omitempty"`
			Key string `json:"key,omitempty"`
		} `json:"metafields,omitempty"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"metafieldsSet"`
}

type MetafieldDefinitionNode struct {
	Key       string `json:"key,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	OwnerType string `json:"ownerType,omitempty"`
}

type MetafieldDefinitionsData struct {
	ProductDefs struct {
		Nodes []MetafieldDefinitionNode `json:"nodes,omitempty"`
	} `json:"productDefs"`
	VariantDefs struct {
		Nodes []MetafieldDefinitionNode `json:"nodes,omitempty"`
	} `json:"variantDefs"`
}

type MetafieldDefinitionCreateData struct {
	MetafieldDefinitionCreate struct {
		CreatedDefinition *struct {
			ID   string `json:"id,omitempty"`
			Name string `json:"name,omitempty"`
		} `json:"createdDefinition,omitempty"`
		UserErrors []ShopifyUserError `json:"userErrors,omitempty"`
	} `json:"metafieldDefinitionCreate"`
}

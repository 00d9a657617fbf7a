package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"metal-pricer/internal/adapters/shopify/dto"
	"metal-pricer/internal/domain/model"
)

const (
	metafieldsSetBatchSize = 25
	breakdownMetafieldKey  = "price_breakdown"

	ownerProduct = "PRODUCT"
	ownerVariant = "PRODUCTVARIANT"
)

type MetafieldService interface {
	WriteBreakdownMetafields(ctx context.Context, mutations []model.PriceMutation) MetafieldWriteResult
	EnsureMetafieldDefinitions(ctx context.Context) (int, error)
	ShopCurrency(ctx context.Context) (string, error)
}

type MetafieldWriteResult struct {
	Written int
	Errors  []error
}

type MetafieldDefinitionInput struct {
	Name        string
	Key         string
	Description string
	Type        string
	OwnerType   string
}

// PricingMetafieldDefinitions are the definitions the sync reads from and
// writes to, for products and for variant overrides.
func PricingMetafieldDefinitions() []MetafieldDefinitionInput {
	base := []MetafieldDefinitionInput{
		{Name: "Metal Type", Key: keyMetalType, Description: "Type of metal (XAU, XAG, XPT, XPD)", Type: "single_line_text_field"},
		{Name: "Metal Purity", Key: keyMetalPurity, Description: "Purity of the metal (e.g. 24 for gold, 999 for silver)", Type: "number_decimal"},
		{Name: "Weight Grams", Key: keyWeightGrams, Description: "Weight of the metal in grams", Type: "number_decimal"},
		{Name: "Making Charge", Key: keyMakingCharge, Description: "Fixed making charge for this item", Type: "number_decimal"},
	}
	defs := make([]MetafieldDefinitionInput, 0, len(base)*2+1)
	for _, d := range base {
		d.OwnerType = ownerProduct
		defs = append(defs, d)
	}
	for _, d := range base {
		d.OwnerType = ownerVariant
		d.Name = "Variant " + d.Name
		d.Description = "Variant override: " + d.Description
		defs = append(defs, d)
	}
	return append(defs, MetafieldDefinitionInput{
		Name:        "Price Breakdown",
		Key:         breakdownMetafieldKey,
		Description: "Breakdown of the last automated price computation",
		Type:        "json",
		OwnerType:   ownerVariant,
	})
}

const metafieldsSetMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
	metafieldsSet(metafields: $metafields) {
		metafields { id key }
		userErrors { field message code }
	}
}`

// WriteBreakdownMetafields stores each mutation's breakdown as a json
// metafield on its variant. Chunks fail independently.
func (c *Client) WriteBreakdownMetafields(ctx context.Context, mutations []model.PriceMutation) MetafieldWriteResult {
	var result MetafieldWriteResult

	inputs := make([]map[string]any, 0, len(mutations))
	for _, m := range mutations {
		if len(m.Breakdown) == 0 {
			continue
		}
		value, err := json.Marshal(m.Breakdown)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("encode breakdown variant=%s: %w", m.VariantID, err))
			continue
		}
		inputs = append(inputs, map[string]any{
			"ownerId":   m.VariantID,
			"namespace": metafieldNamespace,
			"key":       breakdownMetafieldKey,
			"type":      "json",
			"value":     string(value),
		})
	}

	for start := 0; start < len(inputs); start += metafieldsSetBatchSize {
		end := start + metafieldsSetBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		batch := inputs[start:end]

		_, err := c.retry.Do(ctx, func(attempt int) error {
			var data dto.MetafieldsSetData
			if err := c.graphqlRequest(ctx, metafieldsSetMutation, map[string]any{"metafields": batch}, &data); err != nil {
				return err
			}
			if data.MetafieldsSet == nil {
				return errors.New("shopify metafieldsSet returned no payload")
			}
			return userErrorsToDetailedError("metafieldsSet", data.MetafieldsSet.UserErrors)
		}, func(attempt int, delay time.Duration, err error) {
			c.logWarning(fmt.Sprintf("shopify metafieldsSet throttled attempt=%d/%d retry_in=%s", attempt, c.retry.MaxAttempts, delay))
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("breakdown metafields %d-%d: %w", start, end, err))
			continue
		}
		result.Written += len(batch)
	}

	return result
}

const metafieldDefinitionsQuery = `
query metafieldDefinitions {
	productDefs: metafieldDefinitions(first: 250, ownerType: PRODUCT, namespace: "custom") {
		nodes { key namespace ownerType }
	}
	variantDefs: metafieldDefinitions(first: 250, ownerType: PRODUCTVARIANT, namespace: "custom") {
		nodes { key namespace ownerType }
	}
}`

const metafieldDefinitionCreateMutation = `
mutation metafieldDefinitionCreate($definition: MetafieldDefinitionInput!) {
	metafieldDefinitionCreate(definition: $definition) {
		createdDefinition { id name }
		userErrors { field message code }
	}
}`

// EnsureMetafieldDefinitions creates the pricing definitions that do not
// exist yet and returns how many were created.
func (c *Client) EnsureMetafieldDefinitions(ctx context.Context) (int, error) {
	var existing dto.MetafieldDefinitionsData
	if _, err := c.graphqlRequestWithRetry(ctx, "metafieldDefinitions", metafieldDefinitionsQuery, nil, &existing); err != nil {
		return 0, err
	}

	known := make(map[string]struct{})
	for _, nodes := range [][]dto.MetafieldDefinitionNode{existing.ProductDefs.Nodes, existing.VariantDefs.Nodes} {
		for _, n := range nodes {
			known[definitionKey(n.OwnerType, n.Namespace, n.Key)] = struct{}{}
		}
	}

	created := 0
	for _, def := range PricingMetafieldDefinitions() {
		if _, ok := known[definitionKey(def.OwnerType, metafieldNamespace, def.Key)]; ok {
			continue
		}
		definition := map[string]any{
			"name":        def.Name,
			"namespace":   metafieldNamespace,
			"key":         def.Key,
			"description": def.Description,
			"type":        def.Type,
			"ownerType":   def.OwnerType,
		}
		var data dto.MetafieldDefinitionCreateData
		if _, err := c.graphqlRequestWithRetry(ctx, "metafieldDefinitionCreate", metafieldDefinitionCreateMutation, map[string]any{"definition": definition}, &data); err != nil {
			return created, err
		}
		if err := userErrorsToDetailedError("metafieldDefinitionCreate", data.MetafieldDefinitionCreate.UserErrors); err != nil {
			return created, err
		}
		created++
		c.logSuccess(fmt.Sprintf("shopify metafield definition created %s.%s owner=%s", metafieldNamespace, def.Key, def.OwnerType))
	}
	return created, nil
}

func definitionKey(owner, namespace, key string) string {
	return strings.ToUpper(owner) + "/" + namespace + "." + key
}

const shopCurrencyQuery = `
query shopCurrency {
	shop { currencyCode }
}`

func (c *Client) ShopCurrency(ctx context.Context) (string, error) {
	var data dto.ShopQueryData
	if _, err := c.graphqlRequestWithRetry(ctx, "shop", shopCurrencyQuery, nil, &data); err != nil {
		return "", err
	}
	if data.Shop == nil || strings.TrimSpace(data.Shop.CurrencyCode) == "" {
		return "", errors.New("shopify shop currency is empty")
	}
	return strings.ToUpper(strings.TrimSpace(data.Shop.CurrencyCode)), nil
}

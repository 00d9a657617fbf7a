package shopify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"metal-pricer/internal/adapters/shopify/dto"
	"metal-pricer/internal/domain/model"
)

const (
	productsPageSize       = 50
	variantsPerProduct     = 100
	productMetafieldsLimit = 20
	variantMetafieldsLimit = 20

	keyMetalType    = "metal_type"
	keyMetalPurity  = "metal_purity"
	keyWeightGrams  = "weight_grams"
	keyMakingCharge = "making_charge"
)

var ErrMalformedPage = errors.New("shopify products page is malformed")

type CatalogService interface {
	FetchTaggedProducts(ctx context.Context) ([]model.CatalogItem, error)
}

const variantFields = `
	pageInfo { hasNextPage endCursor }
	nodes {
		id
		title
		price
		metafields(namespace: "custom", first: $variantMetafields) {
			pageInfo { hasNextPage }
			nodes { key value type }
		}
	}`

const taggedProductsQuery = `
query taggedProducts($first: Int!, $after: String, $query: String!, $variants: Int!, $productMetafields: Int!, $variantMetafields: Int!) {
	products(first: $first, after: $after, query: $query) {
		pageInfo { hasNextPage endCursor }
		nodes {
			id
			title
			metafields(namespace: "custom", first: $productMetafields) {
				pageInfo { hasNextPage }
				nodes { key value type }
			}
			variants(first: $variants) {` + variantFields + `
			}
		}
	}
}`

const productVariantsQuery = `
query productVariants($id: ID!, $variants: Int!, $after: String, $variantMetafields: Int!) {
	product(id: $id) {
		variants(first: $variants, after: $after) {` + variantFields + `
		}
	}
}`

// FetchTaggedProducts reads every product carrying the pricing tag, page by
// page, starting from the first page on every call.
func (c *Client) FetchTaggedProducts(ctx context.Context) ([]model.CatalogItem, error) {
	var (
		items  []model.CatalogItem
		cursor *string
		pages  int
	)

	for {
		variables := map[string]any{
			"first":             productsPageSize,
			"query":             buildSearchQuery("tag", c.config.ProductTag),
			"variants":          variantsPerProduct,
			"productMetafields": productMetafieldsLimit,
			"variantMetafields": variantMetafieldsLimit,
		}
		if cursor != nil && *cursor != "" {
			variables["after"] = *cursor
		}

		var data dto.ProductsQueryData
		if _, err := c.graphqlRequestWithRetry(ctx, "products", taggedProductsQuery, variables, &data); err != nil {
			return nil, fmt.Errorf("fetch products page %d: %w", pages+1, err)
		}
		page := data.Products
		if page == nil || page.PageInfo == nil || page.Nodes == nil {
			return nil, fmt.Errorf("fetch products page %d: %w", pages+1, ErrMalformedPage)
		}
		pages++

		for _, product := range page.Nodes {
			if strings.TrimSpace(product.ID) == "" {
				c.logWarning("shopify product without id skipped")
				continue
			}
			if err := c.fetchRemainingVariants(ctx, &product); err != nil {
				return nil, err
			}
			items = append(items, c.mapCatalogItem(product))
		}

		if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == "" {
			break
		}
		next := page.PageInfo.EndCursor
		cursor = &next
	}

	c.log(fmt.Sprintf("shopify tagged products fetched products=%d pages=%d tag=%s", len(items), pages, c.config.ProductTag))
	return items, nil
}

// fetchRemainingVariants appends the variants past the first page of a
// product's variant connection.
func (c *Client) fetchRemainingVariants(ctx context.Context, product *dto.ShopifyProduct) error {
	info := product.Variants.PageInfo
	pages := 1
	for info != nil && info.HasNextPage {
		if info.EndCursor == "" {
			return fmt.Errorf("fetch variants of %s: %w", product.ID, ErrMalformedPage)
		}
		variables := map[string]any{
			"id":                product.ID,
			"variants":          variantsPerProduct,
			"after":             info.EndCursor,
			"variantMetafields": variantMetafieldsLimit,
		}
		var data dto.ProductVariantsQueryData
		if _, err := c.graphqlRequestWithRetry(ctx, "product variants", productVariantsQuery, variables, &data); err != nil {
			return fmt.Errorf("fetch variants of %s page %d: %w", product.ID, pages+1, err)
		}
		if data.Product == nil || data.Product.Variants == nil || data.Product.Variants.PageInfo == nil {
			return fmt.Errorf("fetch variants of %s page %d: %w", product.ID, pages+1, ErrMalformedPage)
		}
		pages++
		product.Variants.Nodes = append(product.Variants.Nodes, data.Product.Variants.Nodes...)
		info = data.Product.Variants.PageInfo
	}
	if pages > 1 {
		c.log(fmt.Sprintf("shopify product variants fetched product=%s variants=%d pages=%d", product.ID, len(product.Variants.Nodes), pages))
	}
	return nil
}

func (c *Client) mapCatalogItem(product dto.ShopifyProduct) model.CatalogItem {
	item := model.CatalogItem{
		ID:         strings.TrimSpace(product.ID),
		Title:      product.Title,
		Attributes: c.parseMetafields(product.ID, product.Metafields),
		Variants:   make([]model.Variant, 0, len(product.Variants.Nodes)),
	}
	for _, variant := range product.Variants.Nodes {
		if strings.TrimSpace(variant.ID) == "" {
			c.logWarning(fmt.Sprintf("shopify variant without id skipped product=%s", item.ID))
			continue
		}
		item.Variants = append(item.Variants, model.Variant{
			ID:         strings.TrimSpace(variant.ID),
			Title:      variant.Title,
			Price:      variant.Price,
			Attributes: c.parseMetafields(variant.ID, variant.Metafields),
		})
	}
	return item
}

// parseMetafields keeps metal_type as text and every numeric metafield as a
// number. Unparsable or null values are treated as absent.
func (c *Client) parseMetafields(ownerID string, metafields dto.MetafieldConnection) model.Attributes {
	var attrs model.Attributes
	if metafields.PageInfo != nil && metafields.PageInfo.HasNextPage {
		c.logWarning(fmt.Sprintf("shopify metafields truncated owner=%s read=%d", ownerID, len(metafields.Nodes)))
	}
	for _, node := range metafields.Nodes {
		if node.Key == nil || strings.TrimSpace(*node.Key) == "" {
			c.logWarning(fmt.Sprintf("shopify metafield without key owner=%s", ownerID))
			continue
		}
		key := strings.TrimSpace(*node.Key)
		if node.Value == nil {
			c.logWarning(fmt.Sprintf("shopify metafield %s has no value owner=%s", key, ownerID))
			continue
		}
		value := strings.TrimSpace(*node.Value)

		if key == keyMetalType {
			if value != "" {
				attrs.MetalType = &value
			}
			continue
		}
		if !isNumericMetafield(key, node.Type) {
			continue
		}
		number, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
			c.logWarning(fmt.Sprintf("shopify metafield %s is not a number owner=%s value=%q", key, ownerID, value))
			continue
		}
		switch key {
		case keyMetalPurity:
			attrs.Purity = &number
		case keyWeightGrams:
			attrs.WeightGrams = &number
		case keyMakingCharge:
			attrs.MakingCharge = &number
		default:
			if attrs.Extra == nil {
				attrs.Extra = make(map[string]float64)
			}
			attrs.Extra[key] = number
		}
	}
	return attrs
}

func isNumericMetafield(key, metafieldType string) bool {
	switch key {
	case keyMetalPurity, keyWeightGrams, keyMakingCharge:
		return true
	}
	switch metafieldType {
	case "number_decimal", "number_integer", "number":
		return true
	}
	return false
}

func buildSearchQuery(field, value string) string {
	queryValue := strings.TrimSpace(value)
	if strings.ContainsAny(queryValue, " \"") {
		queryValue = strings.ReplaceAll(queryValue, `"`, `\"`)
		queryValue = fmt.Sprintf(`"%s"`, queryValue)
	}
	return fmt.Sprintf("%s:%s", field, queryValue)
}

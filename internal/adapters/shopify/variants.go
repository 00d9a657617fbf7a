package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"metal-pricer/internal/adapters/shopify/dto"
	"metal-pricer/internal/domain/model"
)

const maxVariantsBatchSize = 250

type VariantPriceService interface {
	UpdateVariantPrices(ctx context.Context, mutations []model.PriceMutation, dryRun bool) WriteResult
}

// GroupResult is the outcome of one productVariantsBulkUpdate call.
type GroupResult struct {
	ProductID  string
	VariantIDs []string
	Attempts   int
	Err        error
}

type RejectedMutation struct {
	Mutation model.PriceMutation
	Reason   string
}

type WriteResult struct {
	DryRun   bool
	Groups   []GroupResult
	Rejected []RejectedMutation
	Updated  int
	Failed   int
}

// FailedGroups counts groups whose write did not succeed.
func (r WriteResult) FailedGroups() int {
	failed := 0
	for _, g := range r.Groups {
		if g.Err != nil {
			failed++
		}
	}
	return failed
}

// Succeeded returns the mutations of every group that was written.
func (r WriteResult) Succeeded(mutations []model.PriceMutation) []model.PriceMutation {
	ok := make(map[string]struct{})
	for _, g := range r.Groups {
		if g.Err != nil {
			continue
		}
		for _, id := range g.VariantIDs {
			ok[id] = struct{}{}
		}
	}
	out := make([]model.PriceMutation, 0, len(ok))
	for _, m := range mutations {
		if _, found := ok[m.VariantID]; found {
			out = append(out, m)
		}
	}
	return out
}

const variantsBulkUpdateMutation = `
mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
	productVariantsBulkUpdate(productId: $productId, variants: $variants) {
		productVariants { id price }
		userErrors { field message code }
	}
}`

// UpdateVariantPrices writes prices grouped by product, one bulk update per
// group. A failing group is recorded and the remaining groups still run.
// With dryRun nothing is sent.
func (c *Client) UpdateVariantPrices(ctx context.Context, mutations []model.PriceMutation, dryRun bool) WriteResult {
	result := WriteResult{DryRun: dryRun}

	valid := make([]model.PriceMutation, 0, len(mutations))
	for _, m := range mutations {
		if reason := validateMutation(m); reason != "" {
			result.Rejected = append(result.Rejected, RejectedMutation{Mutation: m, Reason: reason})
			c.logWarning(fmt.Sprintf("shopify price mutation rejected variant=%s: %s", m.VariantID, reason))
			continue
		}
		valid = append(valid, m)
	}

	for _, group := range groupByProduct(valid) {
		ids := make([]string, 0, len(group.mutations))
		for _, m := range group.mutations {
			ids = append(ids, m.VariantID)
		}
		gr := GroupResult{ProductID: group.productID, VariantIDs: ids}

		if dryRun {
			for _, m := range group.mutations {
				c.log(fmt.Sprintf("[dry-run] would update product=%s variant=%s price=%s", m.ProductID, m.VariantID, m.Price))
			}
			result.Groups = append(result.Groups, gr)
			result.Updated += len(group.mutations)
			continue
		}

		gr.Attempts, gr.Err = c.writeGroup(ctx, group)
		if gr.Err != nil {
			result.Failed += len(group.mutations)
			c.logError(fmt.Sprintf("shopify price update failed product=%s variants=%d attempts=%d", group.productID, len(ids), gr.Attempts), gr.Err)
		} else {
			result.Updated += len(group.mutations)
		}
		result.Groups = append(result.Groups, gr)
	}

	if dryRun {
		c.log(fmt.Sprintf("[dry-run] shopify price update variants=%d groups=%d rejected=%d", result.Updated, len(result.Groups), len(result.Rejected)))
	} else if result.Failed == 0 {
		c.logSuccess(fmt.Sprintf("shopify prices updated variants=%d groups=%d", result.Updated, len(result.Groups)))
	}
	return result
}

func (c *Client) writeGroup(ctx context.Context, group productGroup) (int, error) {
	variants := make([]map[string]any, 0, len(group.mutations))
	for _, m := range group.mutations {
		variants = append(variants, map[string]any{
			"id":    m.VariantID,
			"price": m.Price,
		})
	}
	variables := map[string]any{
		"productId": group.productID,
		"variants":  variants,
	}

	return c.retry.Do(ctx, func(attempt int) error {
		var data dto.ProductVariantsBulkUpdateData
		if err := c.graphqlRequest(ctx, variantsBulkUpdateMutation, variables, &data); err != nil {
			return err
		}
		if data.ProductVariantsBulkUpdate == nil {
			return errors.New("shopify productVariantsBulkUpdate returned no payload")
		}
		return userErrorsToDetailedError("productVariantsBulkUpdate", data.ProductVariantsBulkUpdate.UserErrors)
	}, func(attempt int, delay time.Duration, err error) {
		c.logWarning(fmt.Sprintf("shopify productVariantsBulkUpdate throttled product=%s attempt=%d/%d retry_in=%s", group.productID, attempt, c.retry.MaxAttempts, delay))
	})
}

type productGroup struct {
	productID string
	mutations []model.PriceMutation
}

// groupByProduct keeps products in first-seen order and splits groups larger
// than the bulk update limit.
func groupByProduct(mutations []model.PriceMutation) []productGroup {
	order := make([]string, 0)
	byProduct := make(map[string][]model.PriceMutation)
	for _, m := range mutations {
		if _, ok := byProduct[m.ProductID]; !ok {
			order = append(order, m.ProductID)
		}
		byProduct[m.ProductID] = append(byProduct[m.ProductID], m)
	}

	groups := make([]productGroup, 0, len(order))
	for _, productID := range order {
		items := byProduct[productID]
		for start := 0; start < len(items); start += maxVariantsBatchSize {
			end := start + maxVariantsBatchSize
			if end > len(items) {
				end = len(items)
			}
			groups = append(groups, productGroup{productID: productID, mutations: items[start:end]})
		}
	}
	return groups
}

func validateMutation(m model.PriceMutation) string {
	if strings.TrimSpace(m.VariantID) == "" {
		return "variant id is required"
	}
	if strings.TrimSpace(m.ProductID) == "" {
		return "product id is required"
	}
	price, err := decimal.NewFromString(strings.TrimSpace(m.Price))
	if err != nil {
		return fmt.Sprintf("price %q is not a number", m.Price)
	}
	if price.IsNegative() {
		return fmt.Sprintf("price %q is negative", m.Price)
	}
	return ""
}

package shopify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metal-pricer/internal/domain/model"
)

func mutation(product, variant, price string) model.PriceMutation {
	return model.PriceMutation{
		ProductID: "gid://shopify/Product/" + product,
		VariantID: "gid://shopify/ProductVariant/" + variant,
		Price:     price,
	}
}

const bulkOK = `{"productVariantsBulkUpdate":{"productVariants":[],"userErrors":[]}}`

func productOf(call gqlCall) string {
	id, _ := call.Variables["productId"].(string)
	return id
}

func TestUpdateVariantPrices_GroupsByProduct(t *testing.T) {
	fake := newFakeShopify(t, func(n int, call gqlCall) (int, string) { return ok(bulkOK) })
	client, _, _ := newTestClient(t, fake)

	mutations := []model.PriceMutation{
		mutation("2", "21", "10.00"),
		mutation("1", "11", "20.00"),
		mutation("2", "22", "30.00"),
	}
	result := client.UpdateVariantPrices(context.Background(), mutations, false)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "gid://shopify/Product/2", productOf(calls[0]))
	assert.Equal(t, "gid://shopify/Product/1", productOf(calls[1]))
	assert.Contains(t, calls[0].Query, "productVariantsBulkUpdate")

	variants, _ := calls[0].Variables["variants"].([]any)
	require.Len(t, variants, 2)
	assert.Equal(t, map[string]any{"id": "gid://shopify/ProductVariant/21", "price": "10.00"}, variants[0])

	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.FailedGroups())
	assert.Len(t, result.Succeeded(mutations), 3)
}

func TestUpdateVariantPrices_ThrottledThenSuccess(t *testing.T) {
	fake := newFakeShopify(t, func(n int, call gqlCall) (int, string) {
		if n == 1 {
			return 200, throttledBody
		}
		return ok(bulkOK)
	})
	client, logs, sleeps := newTestClient(t, fake)

	result := client.UpdateVariantPrices(context.Background(), []model.PriceMutation{mutation("1", "11", "5.00")}, false)

	require.Len(t, result.Groups, 1)
	assert.NoError(t, result.Groups[0].Err)
	assert.Equal(t, 2, result.Groups[0].Attempts)
	assert.Equal(t, 1, warnings(logs, "productVariantsBulkUpdate throttled"))
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, sleeps.delays)
}

func TestUpdateVariantPrices_ExhaustedRetriesFailOnlyThatGroup(t *testing.T) {
	fake := newFakeShopify(t, func(n int, call gqlCall) (int, string) {
		if productOf(call) == "gid://shopify/Product/1" {
			return 200, throttledBody
		}
		return ok(bulkOK)
	})
	client, logs, sleeps := newTestClient(t, fake)

	mutations := []model.PriceMutation{mutation("1", "11", "5.00"), mutation("2", "21", "6.00")}
	result := client.UpdateVariantPrices(context.Background(), mutations, false)

	assert.Len(t, fake.Calls(), 4)
	require.Len(t, result.Groups, 2)
	require.Error(t, result.Groups[0].Err)
	assert.Contains(t, result.Groups[0].Err.Error(), "retries exhausted after 3 attempts")
	assert.Equal(t, 3, result.Groups[0].Attempts)
	assert.NoError(t, result.Groups[1].Err)

	assert.Equal(t, 1, result.FailedGroups())
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []model.PriceMutation{mutations[1]}, result.Succeeded(mutations))
	assert.Equal(t, 2, warnings(logs, "productVariantsBulkUpdate throttled"))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleeps.delays)
}

func TestUpdateVariantPrices_UserErrors(t *testing.T) {
	t.Run("plain user error is not retried", func(t *testing.T) {
		fake := newFakeShopify(t, func(n int, call gqlCall) (int, string) {
			return ok(`{"productVariantsBulkUpdate":{"userErrors":[{"field":["variants","0","price"],"message":"Price is invalid","code":"INVALID"}]}}`)
		})
		client, _, sleeps := newTestClient(t, fake)

		result := client.UpdateVariantPrices(context.Background(), []model.PriceMutation{mutation("1", "11", "5.00")}, false)

		assert.Len(t, fake.Calls(), 1)
		assert.Empty(t, sleeps.delays)
		require.Error(t, result.Groups[0].Err)
		assert.Contains(t, result.Groups[0].Err.Error(), "variants.0.price: Price is invalid")
	})

	t.Run("throttled user error is retried", func(t *testing.T) {
		fake := newFakeShopify(t, func(n int, call gqlCall) (int, string) {
			if n == 1 {
				return ok(`{"productVariantsBulkUpdate":{"userErrors":[{"message":"Too many requests","code":"THROTTLED"}]}}`)
			}
			return ok(bulkOK)
		})
		client, _, _ := newTestClient(t, fake)

		result := client.UpdateVariantPrices(context.Background(), []model.PriceMutation{mutation("1", "11", "5.00")}, false)

		assert.Len(t, fake.Calls(), 2)
		assert.NoError(t, result.Groups[0].Err)
	})
}

func TestUpdateVariantPrices_DryRunSendsNothing(t *testing.T) {
	fake := newFakeShopify(t, func(n int, call gqlCall) (int, string) { return ok(bulkOK) })
	client, logs, _ := newTestClient(t, fake)

	mutations := []model.PriceMutation{mutation("1", "11", "5.00"), mutation("1", "12", "6.00")}
	result := client.UpdateVariantPrices(context.Background(), mutations, true)

	assert.Empty(t, fake.Calls())
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 2, logs.FilterMessageSnippet("[dry-run] would update").Len())
}

func TestUpdateVariantPrices_RejectsInvalidMutations(t *testing.T) {
	fake := newFakeShopify(t, func(n int, call gqlCall) (int, string) { return ok(bulkOK) })
	client, _, _ := newTestClient(t, fake)

	mutations := []model.PriceMutation{
		mutation("1", "11", "-1.00"),
		mutation("1", "12", "abc"),
		{ProductID: "gid://shopify/Product/1", Price: "1.00"},
		mutation("1", "13", "7.50"),
	}
	result := client.UpdateVariantPrices(context.Background(), mutations, false)

	assert.Len(t, result.Rejected, 3)
	require.Len(t, fake.Calls(), 1)
	variants, _ := fake.Calls()[0].Variables["variants"].([]any)
	assert.Len(t, variants, 1)
	assert.Equal(t, 1, result.Updated)
}

func TestGroupByProduct_SplitsLargeGroups(t *testing.T) {
	mutations := make([]model.PriceMutation, 0, 260)
	for i := 0; i < 260; i++ {
		mutations = append(mutations, mutation("1", fmt.Sprint(i), "1.00"))
	}
	groups := groupByProduct(mutations)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0].mutations, maxVariantsBatchSize)
	assert.Len(t, groups[1].mutations, 10)
	assert.True(t, strings.HasSuffix(groups[1].mutations[0].VariantID, "/250"))
}

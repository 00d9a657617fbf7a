package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"metal-pricer/internal/adapters/goldapi"
	"metal-pricer/internal/adapters/shopify"
	"metal-pricer/internal/domain/model"
	"metal-pricer/internal/logging"
	"metal-pricer/internal/pricing"
	"metal-pricer/internal/pricing/formula"
)

// SyncInput carries the per-run settings. An empty Pipeline selects the
// built-in formula and an empty RunID gets a generated one.
type SyncInput struct {
	RunID                  string
	Shop                   string
	GlobalMarkupPercent    float64
	Currency               string
	MarketAPIKey           string
	DryRun                 bool
	StopLoss               model.StopLossConfig
	Pipeline               formula.Pipeline
	WriteBreakdownMetadata bool
}

type SyncPricesService interface {
	Run(ctx context.Context, in SyncInput) model.SyncResult
}

type BreakdownWriter interface {
	WriteBreakdownMetafields(ctx context.Context, mutations []model.PriceMutation) shopify.MetafieldWriteResult
}

type SyncPrices struct {
	catalog    shopify.CatalogService
	writer     shopify.VariantPriceService
	breakdowns BreakdownWriter
	market     goldapi.PriceSource
	logger     logging.LoggerService

	now      func() time.Time
	newRunID func() string
}

func NewSyncPrices(catalog shopify.CatalogService, writer shopify.VariantPriceService, breakdowns BreakdownWriter, market goldapi.PriceSource, logger logging.LoggerService) SyncPricesService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SyncPrices{
		catalog:    catalog,
		writer:     writer,
		breakdowns: breakdowns,
		market:     market,
		logger:     logger,
		now:        time.Now,
		newRunID:   NewRunID,
	}
}

// NewRunID returns a time ordered UUIDv7.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Run executes one sync: fetch catalog, fetch market prices, apply stop-loss,
// price every variant and write the results. It never returns an error; a
// fatal step yields Success=false with ItemsUpdated=0.
func (s *SyncPrices) Run(ctx context.Context, in SyncInput) (result model.SyncResult) {
	runID := in.RunID
	if runID == "" {
		runID = s.newRunID()
	}
	result = model.SyncResult{
		RunID:             runID,
		Shop:              in.Shop,
		DryRun:            in.DryRun,
		PricesUsed:        map[string]float64{},
		StopLossTriggered: []string{},
		StartedAt:         s.now(),
	}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.ItemsUpdated = 0
			result.Message = fmt.Sprintf("sync aborted: %v", r)
			s.logger.LogError(fmt.Sprintf("Price sync aborted run=%s shop=%s", result.RunID, in.Shop), fmt.Errorf("panic: %v", r))
		}
		result.CompletedAt = s.now()
	}()

	fail := func(message string, err error) model.SyncResult {
		result.Success = false
		result.ItemsUpdated = 0
		result.Message = message
		if err != nil {
			result.Message = fmt.Sprintf("%s: %v", message, err)
		}
		s.logger.LogError(fmt.Sprintf("Price sync failed run=%s shop=%s: %s", result.RunID, in.Shop, message), err)
		return result
	}

	if err := validateInput(in); err != nil {
		return fail("invalid sync input", err)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))

	s.logger.Log(fmt.Sprintf("Price sync started run=%s shop=%s dry_run=%t", result.RunID, in.Shop, in.DryRun))

	items, err := s.catalog.FetchTaggedProducts(ctx)
	if err != nil {
		return fail("catalog read failed", err)
	}
	if len(items) == 0 {
		result.Success = true
		result.Message = "no tagged products"
		s.logger.LogSuccess(fmt.Sprintf("Price sync completed run=%s shop=%s: no tagged products", result.RunID, in.Shop))
		return result
	}

	codes := metalCodes(items)
	if len(codes) == 0 {
		return fail(fmt.Sprintf("none of %d tagged products has a metal type", len(items)), nil)
	}

	prices, err := s.market.FetchPrices(ctx, currency, in.MarketAPIKey, codes)
	if err != nil {
		return fail("market price fetch failed", err)
	}
	effective := make(map[string]float64, len(codes))
	for _, code := range codes {
		if price, ok := prices[code]; ok && price > 0 && !math.IsInf(price, 0) {
			effective[code] = price
		}
	}
	if len(effective) == 0 {
		return fail(fmt.Sprintf("no market price for %s", strings.Join(codes, ",")), nil)
	}

	triggered := applyStopLoss(effective, in.StopLoss)
	for _, code := range triggered {
		s.logger.LogWarning(fmt.Sprintf("Stop-loss triggered metal=%s live=%.4f floor=%.4f", code, prices[code], effective[code]))
	}
	result.PricesUsed = effective
	result.StopLossTriggered = triggered

	var mutations []model.PriceMutation
	for _, item := range items {
		for _, variant := range item.Variants {
			priced, err := pricing.ResolveAndPrice(item, variant, effective, in.GlobalMarkupPercent, in.Pipeline)
			if err != nil {
				result.SkippedVariants++
				s.logger.LogWarning(err.Error())
				continue
			}
			for _, a := range priced.Anomalies {
				s.logger.LogWarning(fmt.Sprintf("variant %s: %s", variant.ID, a))
			}
			mutations = append(mutations, model.PriceMutation{
				VariantID: variant.ID,
				ProductID: item.ID,
				Price:     priced.PriceString(),
				Breakdown: priced.Breakdown,
			})
		}
	}

	written := s.writer.UpdateVariantPrices(ctx, mutations, in.DryRun)
	result.SkippedVariants += len(written.Rejected)
	result.FailedGroups = written.FailedGroups()
	result.ItemsUpdated = written.Updated
	result.Success = result.FailedGroups == 0

	if in.WriteBreakdownMetadata && !in.DryRun && s.breakdowns != nil {
		if ok := written.Succeeded(mutations); len(ok) > 0 {
			meta := s.breakdowns.WriteBreakdownMetafields(ctx, ok)
			for _, err := range meta.Errors {
				s.logger.LogError("Price breakdown metafields not written", err)
			}
			s.logger.Log(fmt.Sprintf("Price breakdown metafields written=%d failed_chunks=%d", meta.Written, len(meta.Errors)))
		}
	}

	result.Message = fmt.Sprintf("updated=%d skipped=%d failed_groups=%d", result.ItemsUpdated, result.SkippedVariants, result.FailedGroups)
	if len(triggered) > 0 {
		result.Message += " stop_loss=" + strings.Join(triggered, ",")
	}
	if result.Success {
		s.logger.LogSuccess(fmt.Sprintf("Price sync completed run=%s shop=%s %s", result.RunID, in.Shop, result.Message))
	} else {
		s.logger.LogError(fmt.Sprintf("Price sync finished with failures run=%s shop=%s %s", result.RunID, in.Shop, result.Message), nil)
	}
	return result
}

func validateInput(in SyncInput) error {
	var errs []error
	if math.IsNaN(in.GlobalMarkupPercent) || math.IsInf(in.GlobalMarkupPercent, 0) {
		errs = append(errs, fmt.Errorf("markup percent %v is not a number", in.GlobalMarkupPercent))
	}
	if c := strings.TrimSpace(in.Currency); len(c) != 3 {
		errs = append(errs, fmt.Errorf("currency %q is not an ISO code", in.Currency))
	}
	for code, floor := range in.StopLoss {
		if math.IsNaN(floor) || math.IsInf(floor, 0) {
			errs = append(errs, fmt.Errorf("stop-loss for %s is not a number", code))
		}
	}
	if len(in.Pipeline) > 0 {
		if v := formula.Validate(in.Pipeline); !v.Valid {
			for _, msg := range v.Errors {
				errs = append(errs, errors.New(msg))
			}
		}
	}
	return errors.Join(errs...)
}

// metalCodes returns the sorted metal codes any variant resolves to.
func metalCodes(items []model.CatalogItem) []string {
	seen := make(map[string]struct{})
	for _, item := range items {
		for _, variant := range item.Variants {
			attrs := pricing.EffectiveAttributes(item, variant)
			if attrs.MetalType != nil {
				seen[*attrs.MetalType] = struct{}{}
			}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// applyStopLoss raises every price strictly below its floor to the floor and
// returns the affected codes in order.
func applyStopLoss(prices map[string]float64, stopLoss model.StopLossConfig) []string {
	floors := make(model.StopLossConfig, len(stopLoss))
	for code, floor := range stopLoss {
		floors[strings.ToUpper(strings.TrimSpace(code))] = floor
	}
	triggered := []string{}
	for code, live := range prices {
		floor, ok := floors.Floor(code)
		if ok && live < floor {
			prices[code] = floor
			triggered = append(triggered, code)
		}
	}
	sort.Strings(triggered)
	return triggered
}

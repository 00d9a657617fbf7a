package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"metal-pricer/internal/app/usecases"
	"metal-pricer/internal/config"
	"metal-pricer/internal/domain/model"
	"metal-pricer/internal/infra/mysql"
	"metal-pricer/internal/pricing/formula"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Recompute and write prices of tagged products",
	Long: `Run one price sync for the configured shop.

Settings are resolved in order: command flags, merchant settings stored in
MySQL (when configured), then environment variables. With --dry-run the
prices are computed and logged but nothing is written.`,
	RunE: runSync,
}

var (
	syncDryRun         bool
	syncMarkup         float64
	syncCurrency       string
	syncFormulaFile    string
	syncStopLoss       string
	syncWriteBreakdown bool
	syncTimeout        time.Duration
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "compute prices without writing them")
	syncCmd.Flags().Float64Var(&syncMarkup, "markup", 0, "global markup percent")
	syncCmd.Flags().StringVar(&syncCurrency, "currency", "", "ISO currency of market prices (default: shop currency)")
	syncCmd.Flags().StringVar(&syncFormulaFile, "formula", "", "YAML or JSON pricing formula (default: built-in formula)")
	syncCmd.Flags().StringVar(&syncStopLoss, "stop-loss", "", "price per gram floors, e.g. XAU=45,XAG=0.8")
	syncCmd.Flags().BoolVar(&syncWriteBreakdown, "write-breakdown", false, "store the price breakdown as a variant metafield")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 10*time.Minute, "timeout for the whole run")
}

// syncOverrides holds the flags the user actually set.
type syncOverrides struct {
	markup         *float64
	currency       string
	dryRun         *bool
	writeBreakdown *bool
	formulaFile    string
	stopLoss       model.StopLossConfig
}

func overridesFromFlags(cmd *cobra.Command) (syncOverrides, error) {
	var o syncOverrides
	flags := cmd.Flags()
	if flags.Changed("markup") {
		o.markup = &syncMarkup
	}
	if flags.Changed("dry-run") {
		o.dryRun = &syncDryRun
	}
	if flags.Changed("write-breakdown") {
		o.writeBreakdown = &syncWriteBreakdown
	}
	o.currency = syncCurrency
	o.formulaFile = syncFormulaFile
	if flags.Changed("stop-loss") {
		floors, err := config.ParseStopLoss(syncStopLoss)
		if err != nil {
			return syncOverrides{}, err
		}
		o.stopLoss = floors
	}
	return o, nil
}

// resolveSyncInput layers merchant settings and flags over the environment.
func resolveSyncInput(shop string, env config.SyncConfig, merchant *model.MerchantSettings, o syncOverrides) (usecases.SyncInput, error) {
	in := usecases.SyncInput{
		Shop:                   shop,
		GlobalMarkupPercent:    env.MarkupPercent,
		Currency:               env.Currency,
		DryRun:                 env.DryRun,
		StopLoss:               model.StopLossConfig(env.StopLoss),
		WriteBreakdownMetadata: env.WriteBreakdown,
	}
	formulaFile := env.FormulaFile
	var formulaDoc []byte

	if merchant != nil {
		if merchant.MarkupPercent != nil {
			in.GlobalMarkupPercent = *merchant.MarkupPercent
		}
		if merchant.Currency != "" {
			in.Currency = merchant.Currency
		}
		in.MarketAPIKey = merchant.GoldAPIKey
		if merchant.StopLoss != nil {
			in.StopLoss = merchant.StopLoss
		}
		if merchant.WriteBreakdown != nil {
			in.WriteBreakdownMetadata = *merchant.WriteBreakdown
		}
		if len(merchant.Formula) > 0 {
			formulaDoc = merchant.Formula
			formulaFile = ""
		}
	}

	if o.markup != nil {
		in.GlobalMarkupPercent = *o.markup
	}
	if o.currency != "" {
		in.Currency = o.currency
	}
	if o.dryRun != nil {
		in.DryRun = *o.dryRun
	}
	if o.writeBreakdown != nil {
		in.WriteBreakdownMetadata = *o.writeBreakdown
	}
	if o.stopLoss != nil {
		in.StopLoss = o.stopLoss
	}
	if o.formulaFile != "" {
		formulaFile = o.formulaFile
		formulaDoc = nil
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))

	var err error
	switch {
	case formulaFile != "":
		in.Pipeline, err = formula.LoadPipeline(formulaFile)
	case len(formulaDoc) > 0:
		in.Pipeline, err = formula.ParsePipeline(formulaDoc)
	}
	if err != nil {
		return usecases.SyncInput{}, err
	}
	if (formulaFile != "" || len(formulaDoc) > 0) && len(in.Pipeline) == 0 {
		return usecases.SyncInput{}, errors.New("formula has no steps")
	}
	return in, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
	defer cancel()

	shop := a.cfg.Shopify.ShopDomain
	var merchant *model.MerchantSettings
	if a.settings != nil {
		settings, err := a.settings.Get(ctx, shop)
		switch {
		case errors.Is(err, mysql.ErrSettingsNotFound):
			a.logger.LogWarning(fmt.Sprintf("No merchant settings for %s, using environment", shop))
		case err != nil:
			return err
		default:
			merchant = &settings
		}
	}

	in, err := resolveSyncInput(shop, a.cfg.Sync, merchant, overrides)
	if err != nil {
		return err
	}
	if in.Currency == "" {
		if in.Currency, err = a.shopify.ShopCurrency(ctx); err != nil {
			return fmt.Errorf("resolve shop currency: %w", err)
		}
	}

	syncer := usecases.NewSyncPrices(a.shopify, a.shopify, a.shopify, a.goldapi, a.logger)

	if a.syncLog != nil {
		in.RunID = usecases.NewRunID()
		if err := a.syncLog.Begin(ctx, in.RunID, shop, in.DryRun); err != nil {
			return err
		}
	}

	result := syncer.Run(ctx, in)

	if a.syncLog != nil {
		// ctx may already be done here.
		completeCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := a.syncLog.Complete(completeCtx, result); err != nil {
			a.logger.LogError("Sync log not completed", err)
		}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !result.Success {
		return fmt.Errorf("sync failed: %s", result.Message)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"metal-pricer/internal/infra/mysql"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the pricing metafield definitions and database tables",
	Long: `Create the custom.metal_type, custom.metal_purity, custom.weight_grams and
custom.making_charge metafield definitions on products and variants, plus the
custom.price_breakdown variant definition, when they do not exist yet. When
MySQL is configured the merchant_settings and sync_logs tables are created
as well.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	created, err := a.shopify.EnsureMetafieldDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("metafield definitions: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "metafield definitions created: %d\n", created)

	if a.db != nil {
		if err := mysql.Migrate(ctx, a.db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "database tables ready")
	}
	return nil
}

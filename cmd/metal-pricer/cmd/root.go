// Package cmd provides the CLI commands for metal-pricer.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"metal-pricer/internal/config"
)

var version = "dev"

var (
	envFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "metal-pricer",
	Short: "Reprice Shopify products from live precious metal rates",
	Long: `metal-pricer recomputes the price of every Shopify product tagged for
automatic pricing from its metal composition and the live market rate, then
writes the prices back through the Admin GraphQL API.

Examples:
  metal-pricer sync --dry-run
  metal-pricer sync --markup 12 --stop-loss XAU=45
  metal-pricer formula validate ./formula.yaml
  metal-pricer formula preview ./formula.yaml --metal XAU --purity 18 --weight 10 --price-per-gram 100`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded outside production")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json (overrides LOG_FORMAT)")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	config.LoadEnvFile(envFile)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "metal-pricer version %s\n", version)
	},
}

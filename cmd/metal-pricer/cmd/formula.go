package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"metal-pricer/internal/domain/model"
	"metal-pricer/internal/pricing"
	"metal-pricer/internal/pricing/formula"
)

var formulaCmd = &cobra.Command{
	Use:   "formula",
	Short: "Inspect and test pricing formulas",
}

var formulaValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a formula file for duplicate ids and broken references",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormulaValidate,
}

var formulaPreviewCmd = &cobra.Command{
	Use:   "preview [file]",
	Short: "Price a sample item and print the breakdown",
	Long: `Price one sample item with the given formula file, or with the built-in
formula when no file is given, and print every step of the breakdown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFormulaPreview,
}

var formulaDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Print the default formula as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := formula.MarshalPipeline(formula.DefaultPipeline())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var (
	previewMetal        string
	previewPurity       float64
	previewWeight       float64
	previewMakingCharge float64
	previewPricePerGram float64
	previewMarkup       float64
	previewAttrs        map[string]string
)

func init() {
	rootCmd.AddCommand(formulaCmd)
	formulaCmd.AddCommand(formulaValidateCmd)
	formulaCmd.AddCommand(formulaPreviewCmd)
	formulaCmd.AddCommand(formulaDefaultCmd)

	f := formulaPreviewCmd.Flags()
	f.StringVar(&previewMetal, "metal", "XAU", "metal code")
	f.Float64Var(&previewPurity, "purity", 24, "purity on the metal's scale (24 for gold, 999 for others)")
	f.Float64Var(&previewWeight, "weight", 1, "weight in grams")
	f.Float64Var(&previewMakingCharge, "making-charge", 0, "fixed making charge")
	f.Float64Var(&previewPricePerGram, "price-per-gram", 0, "market price per gram")
	f.Float64Var(&previewMarkup, "markup", 0, "global markup percent")
	f.StringToStringVar(&previewAttrs, "attr", nil, "extra numeric attributes, e.g. --attr stone_charge=20")
	_ = formulaPreviewCmd.MarkFlagRequired("price-per-gram")
}

func runFormulaValidate(cmd *cobra.Command, args []string) error {
	pipeline, err := formula.LoadPipeline(args[0])
	if err != nil {
		return err
	}
	result := formula.Validate(pipeline)
	out := cmd.OutOrStdout()
	if result.Valid {
		fmt.Fprintf(out, "✓ %s: %d steps, valid\n", args[0], len(pipeline))
		return nil
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "✗ %s\n", e)
	}
	return fmt.Errorf("%s: %d validation errors", args[0], len(result.Errors))
}

func runFormulaPreview(cmd *cobra.Command, args []string) error {
	var pipeline formula.Pipeline
	if len(args) == 1 {
		p, err := formula.LoadPipeline(args[0])
		if err != nil {
			return err
		}
		if v := formula.Validate(p); !v.Valid {
			return fmt.Errorf("invalid formula: %s", strings.Join(v.Errors, "; "))
		}
		pipeline = p
	}

	extra, err := parseAttrs(previewAttrs)
	if err != nil {
		return err
	}
	metal := strings.ToUpper(strings.TrimSpace(previewMetal))
	attrs := model.Attributes{
		MetalType:   &metal,
		Purity:      &previewPurity,
		WeightGrams: &previewWeight,
		Extra:       extra,
	}
	if cmd.Flags().Changed("making-charge") {
		attrs.MakingCharge = &previewMakingCharge
	}
	item := model.CatalogItem{
		ID:         "preview",
		Attributes: attrs,
		Variants:   []model.Variant{{ID: "preview"}},
	}

	priced, err := pricing.ResolveAndPrice(item, item.Variants[0], map[string]float64{metal: previewPricePerGram}, previewMarkup, pipeline)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tLABEL\tVALUE")
	for _, line := range priced.Breakdown {
		fmt.Fprintf(w, "%s\t%s\t%s\n", line.StepID, line.Label, pricing.FormatMoney(line.Value))
	}
	fmt.Fprintf(w, "\t\t\nfinal\t\t%s\n", priced.PriceString())
	for _, a := range priced.Anomalies {
		fmt.Fprintf(w, "warning\t%s\t\n", a)
	}
	return w.Flush()
}

func parseAttrs(raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for key, value := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %q is not a number", key, value)
		}
		out[strings.TrimSpace(key)] = v
	}
	return out, nil
}

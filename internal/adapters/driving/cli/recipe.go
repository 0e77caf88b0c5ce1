package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var generateOutput string

var validateCmd = &cobra.Command{
	Use:   "validate [recipe.yaml]",
	Short: "Check a deck recipe without building it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var generateCmd = &cobra.Command{
	Use:   "generate [recipe.yaml]",
	Short: "Build a deck from a recipe",
	Long: `Builds a deck from a YAML recipe naming the template, company name,
tagline, about bullets, logo and the (year, value) pairs charted into the
template's chart placeholder. Relative paths are resolved against the
recipe's directory.

Example recipe:
  company_name: Acme GmbH
  tagline: Precision parts since 1962
  template_path: template.pptx
  output_path: acme-im.pptx
  financials:
    - [2021, 12.5]
    - [2022, 14.1]
  chart:
    title: Revenue (EUR m)`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output path (overrides output_path)")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(generateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	if svc.Recipes == nil {
		return errNotConfigured("recipe")
	}

	recipe, err := svc.Recipes.Load(args[0])
	if err != nil {
		return err
	}
	if err := svc.Recipes.Validate(recipe); err != nil {
		return fmt.Errorf("invalid recipe: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	p.Success("Recipe is valid")
	p.Field("Company", recipe.CompanyName)
	p.Field("Template", recipe.TemplatePath)
	p.Field("Output", recipe.OutputPath)
	p.Field("Data points", fmt.Sprintf("%d", len(recipe.Financials)))
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	if svc.Recipes == nil {
		return errNotConfigured("recipe")
	}

	recipe, err := svc.Recipes.Load(args[0])
	if err != nil {
		return err
	}
	if generateOutput != "" {
		recipe.OutputPath = generateOutput
	}

	path, err := svc.Recipes.Generate(context.Background(), recipe)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	newPrinter(cmd.OutOrStdout()).Success("Wrote " + path)
	return nil
}

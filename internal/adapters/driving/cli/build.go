package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
)

// buildOptions are the inputs of the build command.
type buildOptions struct {
	template   string
	company    string
	website    string
	financials string
	bundle     string
	logo       string
	output     string
	noPublic   bool
}

var buildFlags buildOptions

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a deck from local files",
	Long: `Runs the full pipeline on local files: analyzes the template, reads the
financials workbook and document bundle, drafts slide copy and writes the
finished deck.

Example:
  imdeck build --template im.pptx --company "Acme GmbH" \
    --website https://acme.example --financials acme.xlsx --output acme-im.pptx`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildFlags.template, "template", "", "template presentation (.pptx)")
	f.StringVar(&buildFlags.company, "company", "", "company name")
	f.StringVar(&buildFlags.website, "website", "", "company website")
	f.StringVar(&buildFlags.financials, "financials", "", "financials workbook (.xlsx)")
	f.StringVar(&buildFlags.bundle, "bundle", "", "supporting documents (.zip)")
	f.StringVar(&buildFlags.logo, "logo", "", "logo image (png, jpeg or gif)")
	f.StringVarP(&buildFlags.output, "output", "o", "output.pptx", "output path")
	f.BoolVar(&buildFlags.noPublic, "no-public-data", false, "do not fetch the logo or public company data")
	_ = buildCmd.MarkFlagRequired("template")
	_ = buildCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	if svc.Decks == nil {
		return errNotConfigured("deck")
	}

	template, err := os.ReadFile(buildFlags.template)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	financials, err := readOptional(buildFlags.financials)
	if err != nil {
		return fmt.Errorf("read financials: %w", err)
	}
	bundle, err := readOptional(buildFlags.bundle)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}
	logo, err := readOptional(buildFlags.logo)
	if err != nil {
		return fmt.Errorf("read logo: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	progress := func(ev domain.Progress) {
		p.Muted(fmt.Sprintf("[%d/%d] %s", ev.Step, ev.Total, ev.Description))
	}

	deck, err := svc.Decks.Build(context.Background(), driving.BuildRequest{
		Template:       template,
		Financials:     financials,
		Bundle:         bundle,
		Logo:           logo,
		CompanyName:    buildFlags.company,
		Website:        buildFlags.website,
		PullPublicData: !buildFlags.noPublic,
		Chart:          domain.DefaultChartSettings(),
	}, progress)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if err := writeDeck(buildFlags.output, deck); err != nil {
		return err
	}
	p.Success("Wrote " + buildFlags.output)
	return nil
}

// readOptional reads a file, returning nil for an empty path.
func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

func writeDeck(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write deck: %w", err)
	}
	return nil
}

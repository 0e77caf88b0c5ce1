package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [template.pptx]",
	Short: "Describe the slides, tokens and charts of a template",
	Long: `Analyzes a PowerPoint template and lists, per slide, its title, the
tokens it contains and the charts it holds, together with the template's
style samples.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [template.pptx]",
	Short: "List the recognised tokens of a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the analysis as JSON")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(inspectCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	if svc.Decks == nil {
		return errNotConfigured("deck")
	}

	template, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	analysis, err := svc.Decks.Analyze(context.Background(), template)
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	if analyzeJSON {
		data, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal analysis: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	out := cmd.OutOrStdout()
	p := newPrinter(out)
	p.Title(fmt.Sprintf("%d slide(s)", len(analysis.SlideDefs)))
	for _, def := range analysis.SlideDefs {
		fmt.Fprintln(out)
		p.Title(fmt.Sprintf("Slide %d: %s", def.SlideIndex+1, def.Title))
		if def.Style.Layout != "" {
			p.Field("Layout", def.Style.Layout)
		}
		if len(def.Tokens) > 0 {
			p.Field("Tokens", strings.Join(def.Tokens, ", "))
		}
		for _, ct := range def.ChartTokens {
			p.Field("Chart", describeChart(ct))
		}
	}

	if len(analysis.StyleMap) > 0 {
		fmt.Fprintln(out)
		p.Title("Style")
		keys := make([]string, 0, len(analysis.StyleMap))
		for k := range analysis.StyleMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p.Field(k, analysis.StyleMap[k])
		}
	}
	return nil
}

func describeChart(ct domain.ChartToken) string {
	return fmt.Sprintf("%s (%s, series %q, at %d,%d size %dx%d)",
		ct.Token, ct.ChartType, ct.SeriesName, ct.BBox.Left, ct.BBox.Top, ct.BBox.Width, ct.BBox.Height)
}

func runInspect(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	if svc.Decks == nil {
		return errNotConfigured("deck")
	}

	template, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	tokens, err := svc.Decks.Inspect(context.Background(), template)
	if err != nil {
		return fmt.Errorf("inspect failed: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if len(tokens) == 0 {
		p.Muted("No tokens found.")
		return nil
	}
	p.Title(fmt.Sprintf("Found %d token(s):", len(tokens)))
	for _, tok := range tokens {
		p.Item(tok)
	}
	return nil
}

func errNotConfigured(name string) error {
	return fmt.Errorf("%s service not configured", name)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Ensure RecipeService implements the interface.
var _ driving.RecipeService = (*RecipeService)(nil)

// DefaultRecipeOutput is the output file name when a recipe names none.
const DefaultRecipeOutput = "output.pptx"

// RecipeService generates decks from YAML recipes on the local disk.
type RecipeService struct {
	decks driving.DeckService
}

// NewRecipeService creates a recipe service.
func NewRecipeService(decks driving.DeckService) *RecipeService {
	return &RecipeService{decks: decks}
}

// Load reads a recipe, fills chart defaults and makes its paths absolute
// relative to the recipe's directory.
func (s *RecipeService) Load(path string) (*domain.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	var r domain.Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: parse recipe: %v", domain.ErrInvalidInput, err)
	}

	defaults := domain.DefaultChartSettings()
	if r.Chart.Title == "" {
		r.Chart.Title = defaults.Title
	}
	if r.Chart.XLabel == "" {
		r.Chart.XLabel = defaults.XLabel
	}
	if r.Chart.YLabel == "" {
		r.Chart.YLabel = defaults.YLabel
	}
	if r.Chart.PlaceholderToken == "" {
		r.Chart.PlaceholderToken = defaults.PlaceholderToken
	}
	if r.OutputPath == "" {
		r.OutputPath = DefaultRecipeOutput
	}

	dir := filepath.Dir(path)
	r.TemplatePath = resolvePath(dir, r.TemplatePath)
	r.LogoPath = resolvePath(dir, r.LogoPath)
	r.OutputPath = resolvePath(dir, r.OutputPath)
	return &r, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate reports every problem of a recipe at once.
func (s *RecipeService) Validate(r *domain.Recipe) error {
	var problems []string
	if strings.TrimSpace(r.CompanyName) == "" {
		problems = append(problems, "company_name is required")
	}
	if r.TemplatePath == "" {
		problems = append(problems, "template_path is required")
	} else if _, err := os.Stat(r.TemplatePath); err != nil {
		problems = append(problems, fmt.Sprintf("template_path %s does not exist", r.TemplatePath))
	}
	if len(r.Financials) == 0 {
		problems = append(problems, "financials must contain at least one [year, value] pair")
	}
	for i, p := range r.Financials {
		if y := int(p[0]); y < 1900 || y > 2100 {
			problems = append(problems, fmt.Sprintf("financials[%d]: year %v out of range", i, p[0]))
		}
	}
	if r.LogoPath != "" {
		if _, err := os.Stat(r.LogoPath); err != nil {
			problems = append(problems, fmt.Sprintf("logo_path %s does not exist", r.LogoPath))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// Generate builds the deck described by the recipe and writes it to
// OutputPath.
func (s *RecipeService) Generate(ctx context.Context, r *domain.Recipe) (string, error) {
	if err := s.Validate(r); err != nil {
		return "", err
	}
	template, err := os.ReadFile(r.TemplatePath)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	var logo []byte
	if r.LogoPath != "" {
		if logo, err = os.ReadFile(r.LogoPath); err != nil {
			logger.Warn("Logo not read: %v", err)
			logo = nil
		}
	}

	series := domain.SeriesFromPairs(r.Chart.Title, r.Financials)
	deck, err := s.decks.Build(ctx, driving.BuildRequest{
		Template:     template,
		Logo:         logo,
		Series:       &domain.FinancialsData{Series: []domain.FinancialSeries{series}, CompanyName: r.CompanyName},
		CompanyName:  r.CompanyName,
		Tagline:      r.Tagline,
		AboutBullets: r.AboutBullets,
		Chart:        r.Chart,
	}, nil)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(r.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(r.OutputPath, deck, 0o644); err != nil {
		return "", fmt.Errorf("write deck: %w", err)
	}
	logger.Info("Wrote %s (%d bytes)", r.OutputPath, len(deck))
	return r.OutputPath, nil
}

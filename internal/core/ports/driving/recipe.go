package driving

import (
	"context"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

// RecipeService builds decks from local recipe files.
type RecipeService interface {
	// Load reads a recipe and resolves its paths relative to the recipe file.
	Load(path string) (*domain.Recipe, error)

	// Validate checks that a recipe can be generated.
	Validate(r *domain.Recipe) error

	// Generate writes the deck and returns the output path.
	Generate(ctx context.Context, r *domain.Recipe) (string, error)
}

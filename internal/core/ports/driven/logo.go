package driven

import (
	"context"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

// LogoSource looks up a company logo.
type LogoSource interface {
	// FetchLogo returns encoded image bytes.
	// Returns domain.ErrLogoNotFound when no usable image was found.
	FetchLogo(ctx context.Context, companyName, website string) ([]byte, error)
}

// IntelligenceSource gathers public information about a company.
type IntelligenceSource interface {
	Gather(ctx context.Context, companyName, website string) (*domain.Intelligence, error)
}

package driving

import (
	"context"

	"github.com/custodia-labs/imdeck/internal/core/domain"
)

// DeckService turns a template and company inputs into a finished deck.
type DeckService interface {
	// Analyze reports the tokens, titles and charts of a template.
	Analyze(ctx context.Context, template []byte) (*domain.TemplateAnalysis, error)

	// Inspect returns the recognised tokens present in a template.
	Inspect(ctx context.Context, template []byte) ([]string, error)

	// Build runs the full pipeline on in-memory inputs and returns the deck.
	// progress may be nil.
	Build(ctx context.Context, req BuildRequest, progress domain.ProgressFunc) ([]byte, error)
}

// BuildRequest holds the inputs of a one-shot deck build.
type BuildRequest struct {
	// Template is the .pptx template. Required.
	Template []byte

	// Financials is an optional .xlsx workbook.
	Financials []byte

	// Bundle is an optional .zip of supporting documents.
	Bundle []byte

	// Logo is an optional image. When nil and PullPublicData is set,
	// the logo source is consulted.
	Logo []byte

	// Series, when set, is used instead of parsing Financials.
	Series *domain.FinancialsData

	CompanyName    string
	Website        string
	PullPublicData bool

	// Tagline overrides the synthesised {{TAGLINE}} value.
	Tagline string

	// AboutBullets fill {{ABOUT_BULLETS}} ahead of drafted bullets.
	AboutBullets []string

	// Chart configures charts built from {{CHART_PLACEHOLDER}} text boxes.
	Chart domain.ChartSettings
}

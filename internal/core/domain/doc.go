// Package domain defines the core business entities for imdeck.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Token: A {{NAME}} or {{VERB:ARG}} placeholder found in template text
//   - TemplateAnalysis: Slides, chart placeholders and style samples of a template
//   - SlideDraft: Generated copy for one slide
//   - DocumentBundle: Text chunks extracted from uploaded documents
//   - FinancialsData: Named (year, value) series parsed from spreadsheets
//   - Job: One end-to-end generation request and its status
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

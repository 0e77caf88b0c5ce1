// Package services implements the driving port interfaces.
//
// DeckService runs the generation pipeline: TemplateAnalyzer finds the
// slides and tokens of a template, ContentDrafter asks the completion
// service for copy one category group at a time, and DeckAssembler writes
// tokens, charts and the logo back into the presentation. JobService wraps
// the pipeline in queued jobs backed by blob storage. RecipeService runs it
// from a local YAML file.
package services

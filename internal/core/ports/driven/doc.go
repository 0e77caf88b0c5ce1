// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - BlobStore: Uploaded inputs and generated decks
//   - TaskQueue: Job dispatch to workers
//   - JobStore: Job record persistence
//   - ParserRegistry: Selects a DocumentParser by file extension
//   - BundleParser: Extracts chunks from an uploaded archive
//   - FinancialsParser: Extracts financial series from a workbook
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - CompletionService: Language model drafting. Without it every slide gets fallback copy.
//   - LogoSource: Company logo lookup. Without it no logo is placed.
//   - IntelligenceSource: Public company data. Without it context is built from uploads only.
//   - MetricsRecorder: Pipeline metrics.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven

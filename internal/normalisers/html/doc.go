// Package html provides a DocumentParser for HTML documents.
// It extracts readable text from the page body, dropping scripts, styles
// and other non-content elements.
package html

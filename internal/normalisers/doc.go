// Package normalisers provides DocumentParser implementations for the file
// formats found in uploaded document bundles. Each sub-package knows how to
// extract text chunks from one format.
//
// Parsers are registered with a Registry at startup, which picks the
// highest priority parser for a file by its extension.
package normalisers

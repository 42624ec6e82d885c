// Package domain defines the core business entities for Haven.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
// versioned documents, threads, content-addressed files, chunks and
// their embedding lifecycle, ingest submissions, and search types.
package domain

// Package services contains the core application services: the
// catalog ingestion engine, the asynchronous embedding pipeline and
// hybrid search. Services depend only on the port interfaces; adapters
// are wired in by the CLI.
package services

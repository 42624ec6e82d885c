// Package driving defines the interfaces through which external actors
// (CLI, HTTP API, spool watcher) drive the core services.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter or service package
package driving

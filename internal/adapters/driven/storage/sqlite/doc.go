// Package sqlite implements the content store on a single SQLite
// database: the catalog tables, the embedding work queue, the FTS5
// lexical index and the vector index all live in one file, and the
// unified Store hands out each port as an interface view.
package sqlite

package migrations

import "embed"

// FS holds the schema migrations of the embedded backend, one directory per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

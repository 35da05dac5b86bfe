package migrations

import "embed"

// FS holds the goose migrations for the node table.
//
//go:embed *.sql
var FS embed.FS

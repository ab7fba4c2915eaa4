package migrations

import "embed"

// FS contains embedded SQLite migrations for rendezvous storage.
//
//go:embed *.sql
var FS embed.FS

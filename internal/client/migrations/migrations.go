// Package migrations embeds the goose SQL migrations of the local SQLite
// database (cache rows, pending-mutation queue, metadata).
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

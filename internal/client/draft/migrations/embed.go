// Package migrations embeds the draft store's SQLite schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

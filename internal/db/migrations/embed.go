// Package migrations embeds the SQL schema files applied at startup.
package migrations

import "embed"

// Files holds the migration SQL files in apply order.
//
//go:embed *.sql
var Files embed.FS

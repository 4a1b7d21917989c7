// Package migrations embeds the SQL schema migrations applied by sqlstore.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the SQL schema migrations applied by goose at
// startup. Files are named YYYYMMDDHHMMSS_description.sql and run in order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the manifest schema migrations for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

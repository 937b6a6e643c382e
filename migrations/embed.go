// Package migrations embeds the ledger schema so the server binary can
// migrate a database without shipping SQL files alongside it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

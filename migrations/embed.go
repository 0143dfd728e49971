// Package migrations embeds the goose-managed SQL migration set shared by
// the sqlite (lite profile) and Postgres (standard profile) backends, so
// the compiled binary carries its own schema history with no separate
// migrations directory to ship alongside it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

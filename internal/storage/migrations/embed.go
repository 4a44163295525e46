package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files in golang-migrate layout
// (<version>_<name>.up.sql / .down.sql).
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

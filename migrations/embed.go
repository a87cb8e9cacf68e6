// Package migrations embeds the schema migration files so hwtsd can
// apply them without the .sql files present on disk.
package migrations

import (
	"embed"

	"github.com/hwts/hwts-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
}

// Package all registers every storage backend with the factory.
//
// The command blank-imports this package; configuration selects which
// backend actually runs.
package all

import (
	_ "trackloader/internal/storage/mssql"
	_ "trackloader/internal/storage/postgres"
	_ "trackloader/internal/storage/sqlite"
)

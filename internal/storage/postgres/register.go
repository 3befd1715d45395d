package postgres

import "trackloader/internal/storage"

func init() {
	// registers the Postgres backend factory
	storage.RegisterKind("postgres", New)
}

// Package postgres registers the Postgres backend with the storage factory
// at init time. Callers obtain a Repository via storage.New without importing
// this package directly.
package postgres

import (
	"context"

	"transportetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return newRepository(ctx, cfg)
	})
}

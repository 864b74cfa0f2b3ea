// Package all wires all built-in storage backends into the storage factory.
//
// Importing it for side effects makes the following kinds available to
// storage.New:
//
//   - "postgres" (transportetl/internal/storage/postgres)
//   - "mysql"    (transportetl/internal/storage/mysql)
//   - "mssql"    (transportetl/internal/storage/mssql)
//   - "sqlite"   (transportetl/internal/storage/sqlite)
//
// A binary that needs only a subset can import the backends directly.
package all

import (
	_ "transportetl/internal/storage/mssql"
	_ "transportetl/internal/storage/mysql"
	_ "transportetl/internal/storage/postgres"
	_ "transportetl/internal/storage/sqlite"
)

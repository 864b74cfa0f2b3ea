//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transportetl/internal/storage"
	"transportetl/internal/table"
)

// getTestDSN reads TRANSPORT_ETL_MSSQL_DSN and skips when it is empty.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TRANSPORT_ETL_MSSQL_DSN")
	if dsn == "" {
		t.Skip("TRANSPORT_ETL_MSSQL_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

func TestReplaceTableIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := NewRepository(ctx, storage.Config{
		DSN:       dsn,
		Table:     "dbo.transport_clean_it",
		BatchSize: 2,
	})
	require.NoError(t, err)
	defer repo.Close()
	defer repo.Exec(ctx, "DROP TABLE IF EXISTS [dbo].[transport_clean_it]")

	schema := table.Schema{
		{Name: "ANIO", Kind: table.Int64},
		{Name: "TRANSPORTE", Kind: table.String},
		{Name: "VALOR", Kind: table.Float64},
	}
	rows := [][]any{
		{int64(2020), "Metro", 1.5},
		{int64(2020), "Tren", 2.5},
		{int64(2021), "Metrobús", 0.0},
	}
	for i := 0; i < 2; i++ {
		n, err := repo.ReplaceTable(ctx, schema, rows)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	}
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

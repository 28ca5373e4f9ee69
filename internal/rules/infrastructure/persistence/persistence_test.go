package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	require.NoError(t, InitSchema(context.Background(), db))

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

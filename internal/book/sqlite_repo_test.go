package book

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"bookcatalog/db/migrations"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(context.Background(), db, "sqlite"))
	return NewSQLiteRepo(db, 5*time.Second)
}

func TestSQLiteRepo_Contract(t *testing.T) {
	runRepositoryContract(t, newSQLiteRepo(t))
}

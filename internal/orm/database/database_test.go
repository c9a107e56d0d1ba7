package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/conduit-lang/apiorm/internal/orm/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "library.db")

	db, err := Open(context.Background(), Config{Driver: "sqlite3", DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, query.SQLite, db.Dialect)

	_, err = db.Exec("CREATE TABLE book (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT)")
	require.NoError(t, err)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported driver")

	_, err = Open(context.Background(), Config{Driver: "pgx"})
	assert.ErrorContains(t, err, "dsn is required")
}

func TestWrap(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := Wrap(sqlDB, "mysql")
	require.NoError(t, err)
	assert.Equal(t, query.MySQL, db.Dialect)
	assert.Same(t, sqlDB, db.DB)
}

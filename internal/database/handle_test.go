package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_ConnectsOnceAndReuses(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	opens := 0
	migrations := 0
	h := NewHandle("postgres://test", true, nil)
	h.openDB = func(string) (*sql.DB, error) {
		opens++
		return sqlDB, nil
	}
	h.migrateFn = func(context.Context, *sql.DB) error {
		migrations++
		return nil
	}

	first, err := h.DB(context.Background())
	require.NoError(t, err)
	second, err := h.DB(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, migrations)

	mock.ExpectClose()
	require.NoError(t, h.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = h.DB(context.Background())
	assert.ErrorIs(t, err, ErrHandleClosed)
}

func TestHandle_RetriesAfterFailure(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	attempts := 0
	h := NewHandle("postgres://test", false, nil)
	h.openDB = func(string) (*sql.DB, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return sqlDB, nil
	}

	_, err = h.DB(context.Background())
	require.Error(t, err)

	db, err := h.DB(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Equal(t, 2, attempts)
}

func TestMigrate_UsesEmbeddedDir(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Migrate(context.Background(), sqlDB))
	assert.Equal(t, "migrations", gotDir)

	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMigrate_WrapsError(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err := Migrate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migrations")
}

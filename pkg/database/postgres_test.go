package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScripts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestMigrateAppliesUpScriptsInOrder(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"0002_indexes.up.sql": "CREATE INDEX IF NOT EXISTS idx_b ON b (id);",
		"0001_init.up.sql":    "CREATE TABLE IF NOT EXISTS a (id TEXT);",
		"0001_init.down.sql":  "DROP TABLE a;",
		"0003_empty.up.sql":   "  \n",
	})

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db := sqlx.NewDb(sqlDB, "postgres")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS a (id TEXT);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_b ON b (id);")).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := Migrate(context.Background(), db, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.up.sql", "0002_indexes.up.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnFailure(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"0001_init.up.sql":    "CREATE TABLE a (id TEXT);",
		"0002_indexes.up.sql": "CREATE INDEX idx_b ON b (id);",
	})

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db := sqlx.NewDb(sqlDB, "postgres")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id TEXT);")).WillReturnError(errors.New("permission denied"))

	applied, err := Migrate(context.Background(), db, dir)
	assert.ErrorContains(t, err, "apply 0001_init.up.sql")
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

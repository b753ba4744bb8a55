package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMigrationPart(t *testing.T) {
	content := `
-- +migrate Up
CREATE TABLE books (id text);
ALTER TABLE books ADD COLUMN title text;

-- +migrate Down
DROP TABLE books;
`
	t.Run("Extract Up", func(t *testing.T) {
		up := extractMigrationPart(content, "Up")
		assert.Contains(t, up, "CREATE TABLE books")
		assert.Contains(t, up, "ALTER TABLE books")
		assert.NotContains(t, up, "DROP TABLE books")
		assert.NotContains(t, up, "-- +migrate Up")
	})

	t.Run("Extract Down", func(t *testing.T) {
		down := extractMigrationPart(content, "Down")
		assert.Contains(t, down, "DROP TABLE books")
		assert.NotContains(t, down, "CREATE TABLE books")
	})
}

func writeMigration(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunMigrationsUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dir := t.TempDir()
	applied := writeMigration(t, dir, "20250101_books.sql", "-- +migrate Up\nCREATE TABLE books (id text);")
	fresh := writeMigration(t, dir, "20250102_carts.sql", "-- +migrate Up\nCREATE TABLE carts (user_id text);")

	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs("20250101_books.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs("20250102_carts.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE carts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("20250102_carts.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, runMigrationsUp(context.Background(), db, []string{applied, fresh}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsUp_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	file := writeMigration(t, t.TempDir(), "20250101_books.sql", "-- +migrate Up\nCREATE TABLE books (id text);")

	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs("20250101_books.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE books").
		WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = runMigrationsUp(context.Background(), db, []string{file})
	assert.ErrorContains(t, err, "20250101_books.sql")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsDown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	file := writeMigration(t, t.TempDir(), "20250101_books.sql",
		"-- +migrate Up\nCREATE TABLE books (id text);\n-- +migrate Down\nDROP TABLE books;")

	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("20250101_books.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE books").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM schema_migrations").
		WithArgs("20250101_books.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, runMigrationsDown(context.Background(), db, []string{file}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_UnknownMode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = run(context.Background(), db, "sideways", t.TempDir())
	assert.ErrorContains(t, err, "unknown mode")
}

func TestRepoMigrationsHaveBothParts(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		content, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.NotEmpty(t, extractMigrationPart(string(content), "Up"), f)
		assert.NotEmpty(t, extractMigrationPart(string(content), "Down"), f)
	}
}

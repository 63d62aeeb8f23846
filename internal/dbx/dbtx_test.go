package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, owner TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM t`)
	require.NoError(t, err)
	return db
}

func TestExpectOneRow_Sqlite(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	var q DBTX = db

	_, err := q.ExecContext(ctx, `INSERT INTO t(id, owner) VALUES (1, 'u1'), (2, 'u1')`)
	require.NoError(t, err)

	res, err := q.ExecContext(ctx, `DELETE FROM t WHERE id = 1 AND owner = 'u1'`)
	require.NoError(t, err)
	require.NoError(t, ExpectOneRow(res))

	// Wrong owner matches nothing.
	res, err = q.ExecContext(ctx, `DELETE FROM t WHERE id = 2 AND owner = 'u2'`)
	require.NoError(t, err)
	require.ErrorIs(t, ExpectOneRow(res), common.ErrNotFound)
}

func TestExpectOneRow_Errors(t *testing.T) {
	err := ExpectOneRow(sqlmock.NewResult(0, 2))
	require.EqualError(t, err, "unexpected rows affected: 2")

	err = ExpectOneRow(sqlmock.NewErrorResult(errors.New("rows-err")))
	require.ErrorContains(t, err, "rows affected error: rows-err")
}

package sqlgen

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDB creates a throwaway database with a small table.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, qty INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items (name, qty) VALUES ('apple', 3), ('banana', 5)`)
	require.NoError(t, err)
	return path
}

func TestExecutor_Select(t *testing.T) {
	e := NewExecutor(seedDB(t), time.Second)

	o := e.Execute(context.Background(), "SELECT name, qty FROM items ORDER BY id")
	require.True(t, o.OK(), "outcome: %+v", o)
	assert.Equal(t, []string{"name", "qty"}, o.Columns)
	require.Equal(t, 2, o.RowCount)
	assert.Equal(t, "apple", o.Rows[0][0])
	assert.EqualValues(t, 3, o.Rows[0][1])
}

func TestExecutor_EmptyResult(t *testing.T) {
	e := NewExecutor(seedDB(t), time.Second)

	o := e.Execute(context.Background(), "SELECT name FROM items WHERE qty > 100")
	require.True(t, o.OK())
	assert.Zero(t, o.RowCount)
	assert.Empty(t, o.Rows)
}

func TestExecutor_WritesAreBlocked(t *testing.T) {
	path := seedDB(t)
	e := NewExecutor(path, time.Second)

	o := e.Execute(context.Background(), "DELETE FROM items")
	assert.True(t, o.Failed(), "write must not succeed on a read-only connection")

	// The data is untouched either way.
	check := e.Execute(context.Background(), "SELECT count(*) FROM items")
	require.True(t, check.OK())
	assert.EqualValues(t, 2, check.Rows[0][0])
}

func TestExecutor_SchemaErrorClass(t *testing.T) {
	e := NewExecutor(seedDB(t), time.Second)

	o := e.Execute(context.Background(), "SELECT * FROM missing_table")
	require.Equal(t, OutcomeExecutionError, o.Kind)
	assert.Equal(t, "schema", o.ErrClass)
	assert.Contains(t, o.Message, "missing_table")
}

func TestExecutor_SyntaxErrorClass(t *testing.T) {
	e := NewExecutor(seedDB(t), time.Second)

	o := e.Execute(context.Background(), "SELECT FROM WHERE")
	require.Equal(t, OutcomeExecutionError, o.Kind)
	assert.Equal(t, "syntax", o.ErrClass)
}

func TestExecutor_ExpiredContextIsTimeout(t *testing.T) {
	e := NewExecutor(seedDB(t), time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	o := e.Execute(ctx, "SELECT * FROM items")
	require.Equal(t, OutcomeTimeout, o.Kind, "deadline expiry must not be reported as an execution error")
	assert.True(t, o.Failed())
}

func TestExecutor_DefaultTimeout(t *testing.T) {
	e := NewExecutor("ignored.db", 0)
	assert.Equal(t, DefaultExecTimeout, e.timeout)
}

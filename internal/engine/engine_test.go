package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Options{DataDir: t.TempDir(), BufferPoolCapacity: 8, Optimize: true})
	require.NoError(t, err)
	return e
}

func setupUsers(t *testing.T, e *Engine) {
	t.Helper()
	ok, _, err := e.Process("CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(30), age INTEGER);")
	require.NoError(t, err)
	require.True(t, ok)
	for _, stmt := range []string{
		"INSERT INTO users VALUES (1, 'Alice', 30);",
		"INSERT INTO users VALUES (2, 'Bob', 25);",
		"INSERT INTO users VALUES (3, 'Carol', 25);",
	} {
		ok, _, err := e.Process(stmt)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestProcessSimpleSelect(t *testing.T) {
	e := newEngine(t)
	setupUsers(t, e)
	ok, rows, err := e.Process("SELECT name FROM users WHERE age = 25;")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, rows, 2)
}

func TestProcessComplexSelectUsesOptimizer(t *testing.T) {
	e := newEngine(t)
	setupUsers(t, e)
	d := e.ProcessWithDetails("SELECT age, COUNT(*) AS c FROM users GROUP BY age ORDER BY age;")
	require.NoError(t, d.Err)
	assert.True(t, d.Success)
	assert.NotNil(t, d.OptimizerStats)
	assert.Len(t, d.Rows, 2)
}

func TestProcessDdlReturnsStatusRow(t *testing.T) {
	e := newEngine(t)
	d := e.ProcessWithDetails("CREATE TABLE t (id INTEGER PRIMARY KEY);")
	require.NoError(t, d.Err)
	require.Len(t, d.Rows, 1)
	assert.Contains(t, d.Rows[0]["message"].Text(), "created")
}

func TestProcessDetailsReportsCounts(t *testing.T) {
	e := newEngine(t)
	setupUsers(t, e)
	d := e.ProcessWithDetails("SELECT name FROM users;")
	assert.True(t, d.Success)
	assert.Greater(t, d.TokenCount, 0)
	assert.Greater(t, d.QuadrupleCount, 0)
	assert.Greater(t, d.InstructionCount, 0)
}

func TestTransactionCommit(t *testing.T) {
	e := newEngine(t)
	setupUsers(t, e)

	ok, _, err := e.Process("BEGIN;")
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = e.Process("DELETE FROM users WHERE age = 25;")
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = e.Process("COMMIT;")
	require.NoError(t, err)
	require.True(t, ok)

	_, rows, err := e.Process("SELECT name FROM users;")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTransactionRollback(t *testing.T) {
	e := newEngine(t)
	setupUsers(t, e)

	ok, _, err := e.Process("BEGIN;")
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = e.Process("DELETE FROM users WHERE age = 25;")
	require.NoError(t, err)

	ok, _, err = e.Process("ROLLBACK;")
	require.NoError(t, err)
	require.True(t, ok)

	_, rows, err := e.Process("SELECT name FROM users;")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCommitWithoutBeginFails(t *testing.T) {
	e := newEngine(t)
	ok, _, err := e.Process("COMMIT;")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestParseErrorSurfaces(t *testing.T) {
	e := newEngine(t)
	ok, _, err := e.Process("SELEKT * FROM users;")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestClosePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(Options{DataDir: dir, BufferPoolCapacity: 8})
	require.NoError(t, err)
	setupUsers(t, e)
	require.NoError(t, e.Close())

	reopened, err := Open(Options{DataDir: dir, BufferPoolCapacity: 8})
	require.NoError(t, err)
	_, rows, err := reopened.Process("SELECT name FROM users;")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

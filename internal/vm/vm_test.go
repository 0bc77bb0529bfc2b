package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/internal/ast"
	"reldb/internal/catalog"
	"reldb/internal/codegen"
	"reldb/internal/parser"
	"reldb/internal/quad"
	"reldb/internal/semantic"
	"reldb/internal/storage"
	"reldb/internal/value"
)

func newFacade(t *testing.T) *storage.Facade {
	t.Helper()
	f, err := storage.NewFacade(storage.Config{BufferPoolCapacity: 8, Policy: storage.LRU, DataDir: t.TempDir()})
	require.NoError(t, err)
	return f
}

func run(t *testing.T, f *storage.Facade, sql string) *Result {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)

	quads := mustQuads(t, stmt, f.Catalog)
	prog, err := codegen.Generate(quads)
	require.NoError(t, err)
	res, err := Execute(prog, f, f.Catalog)
	require.NoError(t, err)
	return res
}

func mustQuads(t *testing.T, stmt *ast.Stmt, cat *catalog.Catalog) quad.List {
	t.Helper()
	if stmt.Select != nil {
		q, err := semantic.AnalyzeSelect(stmt.Select, cat)
		require.NoError(t, err)
		return q
	}
	q, err := semantic.AnalyzeDDLDML(stmt, cat)
	require.NoError(t, err)
	return q
}

func setupUsers(t *testing.T, f *storage.Facade) {
	t.Helper()
	_ = run(t, f, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(30), age INTEGER);")
	_ = run(t, f, "INSERT INTO users VALUES (1, 'Alice', 30);")
	_ = run(t, f, "INSERT INTO users VALUES (2, 'Bob', 25);")
	_ = run(t, f, "INSERT INTO users VALUES (3, 'Carol', 25);")
}

func TestCreateAndInsertAndSelect(t *testing.T) {
	f := newFacade(t)
	setupUsers(t, f)
	res := run(t, f, "SELECT name FROM users WHERE age = 25;")
	require.Len(t, res.Rows, 2)
}

func TestUpdateSelfReferencing(t *testing.T) {
	f := newFacade(t)
	setupUsers(t, f)
	res := run(t, f, "UPDATE users SET age = age + 1 WHERE name = 'Alice';")
	assert.Contains(t, res.Message, "1 row(s) updated")
	sel := run(t, f, "SELECT age FROM users WHERE name = 'Alice';")
	require.Len(t, sel.Rows, 1)
	assert.Equal(t, int64(31), sel.Rows[0]["age"].Int())
}

func TestDeleteWithWhere(t *testing.T) {
	f := newFacade(t)
	setupUsers(t, f)
	res := run(t, f, "DELETE FROM users WHERE age = 25;")
	assert.Contains(t, res.Message, "2 row(s) deleted")
	sel := run(t, f, "SELECT name FROM users;")
	require.Len(t, sel.Rows, 1)
}

func TestCountAggregate(t *testing.T) {
	f := newFacade(t)
	setupUsers(t, f)
	res := run(t, f, "SELECT COUNT(*) AS total FROM users;")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(3), res.Rows[0]["total"].Int())
}

func TestGroupByWithCount(t *testing.T) {
	f := newFacade(t)
	setupUsers(t, f)
	res := run(t, f, "SELECT age, COUNT(*) AS c FROM users GROUP BY age;")
	require.Len(t, res.Rows, 2)
	totals := map[int64]int64{}
	for _, r := range res.Rows {
		totals[r["age"].Int()] = r["c"].Int()
	}
	assert.Equal(t, int64(1), totals[30])
	assert.Equal(t, int64(2), totals[25])
}

func TestInnerJoin(t *testing.T) {
	f := newFacade(t)
	setupUsers(t, f)
	_ = run(t, f, "CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, amount INTEGER);")
	_ = run(t, f, "INSERT INTO orders VALUES (1, 1, 100);")
	_ = run(t, f, "INSERT INTO orders VALUES (2, 2, 50);")
	res := run(t, f, "SELECT u.name, o.amount FROM users u INNER JOIN orders o ON u.id = o.user_id;")
	require.Len(t, res.Rows, 2)
}

func TestOrderByAndLimit(t *testing.T) {
	f := newFacade(t)
	setupUsers(t, f)
	res := run(t, f, "SELECT name FROM users ORDER BY age LIMIT 1;")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Bob", res.Rows[0]["name"].Text())
}

func TestIndexAssistedLookupMatchesScan(t *testing.T) {
	f := newFacade(t)
	setupUsers(t, f)
	_ = run(t, f, "CREATE INDEX idx_age ON users(age);")
	perf, err := f.SelectWithPerformance("users", "age", value.Int(25))
	require.NoError(t, err)
	assert.True(t, perf.UsedIndex)
	assert.Len(t, perf.Rows, 2)
	// setupUsers and the CREATE INDEX scan above both pinned users' sole
	// page repeatedly, so the pool backing it must show that traffic.
	assert.Greater(t, perf.Stats.Hits+perf.Stats.Misses, 0)
}

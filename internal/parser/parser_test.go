package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/internal/ast"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(50), age INTEGER);`)
	require.NoError(t, err)
	require.Equal(t, ast.ClassDDL, stmt.Class)
	require.NotNil(t, stmt.CreateTable)
	ct := stmt.CreateTable
	assert.Equal(t, "users", ct.Table)
	require.Len(t, ct.Columns, 3)
	assert.True(t, ct.Columns[0].PrimaryKey)
	assert.Equal(t, 50, ct.Columns[1].MaxLength)
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse(`INSERT INTO users VALUES (1, 'Alice', 25);`)
	require.NoError(t, err)
	require.NotNil(t, stmt.Insert)
	assert.Equal(t, "users", stmt.Insert.Table)
	require.Len(t, stmt.Insert.Values, 3)
	assert.Equal(t, "Alice", stmt.Insert.Values[1].Text())
}

func TestParseSimpleSelectWhere(t *testing.T) {
	stmt, err := Parse(`SELECT name FROM users WHERE age > 25;`)
	require.NoError(t, err)
	require.NotNil(t, stmt.Select)
	assert.False(t, stmt.Select.IsComplex())
	require.NotNil(t, stmt.Select.Where)
	assert.Equal(t, ast.OpGT, stmt.Select.Where.Leaf.Op)
}

func TestParseComplexSelect(t *testing.T) {
	sql := `SELECT u.name, c.course_name FROM users u INNER JOIN courses c ON u.id = c.student_id WHERE c.score >= 85;`
	stmt, err := Parse(sql)
	require.NoError(t, err)
	require.True(t, stmt.Select.IsComplex())
	require.Len(t, stmt.Select.Joins, 1)
	j := stmt.Select.Joins[0]
	assert.Equal(t, ast.InnerJoin, j.Kind)
	assert.Equal(t, "u", j.LeftQualifier)
	assert.Equal(t, "student_id", j.RightColumn)
}

func TestParseAggregateWithAlias(t *testing.T) {
	stmt, err := Parse(`SELECT COUNT(*) AS c FROM users;`)
	require.NoError(t, err)
	require.True(t, stmt.Select.IsComplex())
	require.Len(t, stmt.Select.Items, 1)
	assert.Equal(t, "COUNT", stmt.Select.Items[0].Aggregate.Func)
	assert.Equal(t, "c", stmt.Select.Items[0].Alias)
}

func TestParseGroupByHavingOrderLimit(t *testing.T) {
	sql := `SELECT dept, COUNT(*) AS n FROM emp GROUP BY dept HAVING COUNT(*) > 1 ORDER BY n DESC LIMIT 5 OFFSET 1;`
	stmt, err := Parse(sql)
	require.NoError(t, err)
	require.NotNil(t, stmt.Select.GroupBy)
	require.NotNil(t, stmt.Select.Having)
	require.NotNil(t, stmt.Select.OrderBy)
	assert.True(t, stmt.Select.OrderBy.Desc)
	require.NotNil(t, stmt.Select.Limit)
	assert.EqualValues(t, 5, stmt.Select.Limit.Limit)
	assert.EqualValues(t, 1, stmt.Select.Limit.Offset)
}

func TestParseUpdateWithSelfReferencingExpr(t *testing.T) {
	stmt, err := Parse(`UPDATE users SET age = age + 1 WHERE name = 'Alice';`)
	require.NoError(t, err)
	require.NotNil(t, stmt.Update)
	a := stmt.Update.Assignments[0]
	assert.Equal(t, "age", a.Column)
	assert.Equal(t, "+", a.Op)
	assert.EqualValues(t, 1, a.Rhs.Int())
}

func TestParseCreateUniqueIndex(t *testing.T) {
	stmt, err := Parse(`CREATE UNIQUE INDEX idx_name ON users(name, age);`)
	require.NoError(t, err)
	require.NotNil(t, stmt.CreateIndex)
	assert.True(t, stmt.CreateIndex.Unique)
	assert.Equal(t, []string{"name", "age"}, stmt.CreateIndex.Columns)
}

func TestParseErrorReportsExpectedVsFound(t *testing.T) {
	_, err := Parse(`SELECT FROM users;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestParseTransactionKeywords(t *testing.T) {
	stmt, err := Parse(`BEGIN;`)
	require.NoError(t, err)
	assert.Equal(t, ast.KindBegin, stmt.Kind)

	stmt, err = Parse(`ROLLBACK;`)
	require.NoError(t, err)
	assert.Equal(t, ast.KindRollback, stmt.Kind)
}

func TestParseDeleteWithoutWhere(t *testing.T) {
	stmt, err := Parse(`DELETE FROM users;`)
	require.NoError(t, err)
	assert.Nil(t, stmt.Delete.Where)
}

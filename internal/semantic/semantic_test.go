package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/internal/catalog"
	"reldb/internal/parser"
	"reldb/internal/quad"
)

func usersCatalog() *catalog.Catalog {
	cat := catalog.New()
	cat.PutTable(&catalog.Table{
		Name: "users",
		Columns: []*catalog.Column{
			{Name: "id", Kind: catalog.KindInteger, PrimaryKey: true, Nullable: false},
			{Name: "name", Kind: catalog.KindString, MaxLength: 50, Nullable: true},
			{Name: "age", Kind: catalog.KindInteger, Nullable: true},
		},
		PrimaryKey: "id",
	})
	cat.PutTable(&catalog.Table{
		Name: "courses",
		Columns: []*catalog.Column{
			{Name: "course_id", Kind: catalog.KindInteger, PrimaryKey: true},
			{Name: "student_id", Kind: catalog.KindInteger},
			{Name: "course_name", Kind: catalog.KindString},
			{Name: "score", Kind: catalog.KindFloat},
		},
	})
	return cat
}

func TestAnalyzeSelectEmitsExpectedOrder(t *testing.T) {
	stmt, err := parser.Parse("SELECT name FROM users WHERE age > 25;")
	require.NoError(t, err)
	quads, err := AnalyzeSelect(stmt.Select, usersCatalog())
	require.NoError(t, err)
	require.True(t, len(quads) >= 5)
	assert.Equal(t, quad.Begin, quads[0].Op)
	assert.Equal(t, quad.Select, quads[1].Op)
	assert.Equal(t, quad.Filter, quads[2].Op)
	assert.Equal(t, quad.Project, quads[3].Op)
	assert.Equal(t, quad.Output, quads[len(quads)-2].Op)
	assert.Equal(t, quad.End, quads[len(quads)-1].Op)
}

func TestAnalyzeSelectUnknownTable(t *testing.T) {
	stmt, err := parser.Parse("SELECT name FROM ghosts;")
	require.NoError(t, err)
	_, err = AnalyzeSelect(stmt.Select, usersCatalog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table-not-exist")
}

func TestAnalyzeSelectUnknownColumn(t *testing.T) {
	stmt, err := parser.Parse("SELECT nope FROM users;")
	require.NoError(t, err)
	_, err = AnalyzeSelect(stmt.Select, usersCatalog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column-not-exist")
}

func TestAnalyzeJoinValidatesBothTables(t *testing.T) {
	sql := "SELECT u.name, c.course_name FROM users u INNER JOIN courses c ON u.id = c.student_id WHERE c.score >= 85;"
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	quads, err := AnalyzeSelect(stmt.Select, usersCatalog())
	require.NoError(t, err)
	found := false
	for _, q := range quads {
		if q.Op == quad.InnerJoin {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeCreateTableDuplicateColumn(t *testing.T) {
	stmt, err := parser.Parse("CREATE TABLE t (a INTEGER, a FLOAT);")
	// duplicate columns are caught at parse time already
	if err == nil {
		_, err = AnalyzeDDLDML(stmt, catalog.New())
	}
	require.Error(t, err)
}

func TestAnalyzeInsertColumnCountMismatch(t *testing.T) {
	stmt, err := parser.Parse("INSERT INTO users VALUES (1, 'Alice');")
	require.NoError(t, err)
	_, err = AnalyzeDDLDML(stmt, usersCatalog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestAnalyzeUpdateSelfReferencing(t *testing.T) {
	stmt, err := parser.Parse("UPDATE users SET age = age + 1 WHERE name = 'Alice';")
	require.NoError(t, err)
	quads, err := AnalyzeDDLDML(stmt, usersCatalog())
	require.NoError(t, err)
	require.Len(t, quads, 1)
	payload, ok := quads[0].Arg2.(*quad.DmlPayload)
	require.True(t, ok)
	assert.Equal(t, "+", payload.AssignOps["age"])
}

func TestAnalyzeCreateIndexUnknownColumn(t *testing.T) {
	stmt, err := parser.Parse("CREATE INDEX idx ON users(nope);")
	require.NoError(t, err)
	_, err = AnalyzeDDLDML(stmt, usersCatalog())
	require.Error(t, err)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reldb/internal/value"
)

func TestParseLiteralCoercesTypes(t *testing.T) {
	assert.Equal(t, value.Int(42), parseLiteral("42"))
	assert.Equal(t, value.Flt(3.5), parseLiteral("3.5"))
	assert.Equal(t, value.Bool(true), parseLiteral("true"))
	assert.Equal(t, value.Str("Alice"), parseLiteral("Alice"))
}

func TestSplitStatementsTerminatesEachWithSemicolon(t *testing.T) {
	script := "CREATE TABLE t (id INTEGER);\nINSERT INTO t VALUES (1);\n"
	stmts := splitStatements(script)
	assert.Equal(t, []string{"CREATE TABLE t (id INTEGER);", "INSERT INTO t VALUES (1);"}, stmts)
}

func TestSplitStatementsSkipsBlankSegments(t *testing.T) {
	stmts := splitStatements("  ;;  SELECT 1;  ")
	assert.Equal(t, []string{"SELECT 1;"}, stmts)
}

func TestRatioZeroIndexDuration(t *testing.T) {
	assert.Equal(t, float64(0), ratio(100, 0))
}

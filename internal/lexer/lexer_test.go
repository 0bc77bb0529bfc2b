package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/internal/token"
)

func TestAllBasicStatement(t *testing.T) {
	toks, err := All("SELECT name FROM users WHERE age > 25;")
	require.NoError(t, err)

	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.Equal(t, []token.Kind{
		token.Keyword, token.Identifier, token.Keyword, token.Identifier,
		token.Keyword, token.Identifier, token.Gt, token.IntLiteral,
		token.Semicolon, token.EOF,
	}, kinds)
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	toks, err := All("select * from Users")
	require.NoError(t, err)
	assert.Equal(t, "SELECT", toks[0].Value)
	assert.Equal(t, "FROM", toks[2].Value)
	assert.Equal(t, "Users", toks[3].Value, "identifiers preserve case")
}

func TestStringLiteralWithDoubledQuote(t *testing.T) {
	toks, err := All(`'O''Brien'`)
	require.NoError(t, err)
	require.Equal(t, token.StringLiteral, toks[0].Kind)
	assert.Equal(t, "O'Brien", toks[0].Value)
}

func TestUnterminatedStringIsLexicalError(t *testing.T) {
	_, err := All(`SELECT 'oops`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated string")
}

func TestIllegalCharacter(t *testing.T) {
	_, err := All("SELECT # FROM t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal character")
}

func TestCommentsAreSkipped(t *testing.T) {
	toks, err := All("SELECT 1 -- trailing comment\nFROM t /* block\ncomment */ WHERE 1=1")
	require.NoError(t, err)
	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.NotContains(t, kinds, token.Illegal)
}

func TestFloatLiteralsWithAndWithoutLeadingDigit(t *testing.T) {
	toks, err := All("1.5 .5 10")
	require.NoError(t, err)
	require.Len(t, toks, 4) // 3 numbers + EOF
	assert.Equal(t, token.FloatLiteral, toks[0].Kind)
	assert.Equal(t, token.FloatLiteral, toks[1].Kind)
	assert.Equal(t, token.IntLiteral, toks[2].Kind)
}

func TestPositionsTracked(t *testing.T) {
	toks, err := All("SELECT\n  a")
	require.NoError(t, err)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 2, toks[1].Pos.Line)
}

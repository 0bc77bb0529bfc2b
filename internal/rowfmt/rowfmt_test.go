package rowfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/internal/value"
)

func TestNewFormatterDefaultsToTable(t *testing.T) {
	f, err := NewFormatter("")
	require.NoError(t, err)
	assert.IsType(t, tableFormatter{}, f)
}

func TestNewFormatterRejectsUnknown(t *testing.T) {
	_, err := NewFormatter("xml")
	assert.Error(t, err)
}

func TestTableFormatterRendersColumnsAndRowCount(t *testing.T) {
	f, err := NewFormatter("table")
	require.NoError(t, err)
	rows := []Row{
		{"name": value.Str("Alice"), "age": value.Int(30)},
		{"name": value.Str("Bob"), "age": value.Int(25)},
	}
	out, err := f.FormatRows([]string{"name", "age"}, rows)
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "(2 row(s))")
}

func TestTableFormatterHandlesNull(t *testing.T) {
	f, _ := NewFormatter("table")
	rows := []Row{{"name": value.NullValue()}}
	out, err := f.FormatRows([]string{"name"}, rows)
	require.NoError(t, err)
	assert.Contains(t, out, "NULL")
}

func TestJSONFormatterRoundTripsValues(t *testing.T) {
	f, err := NewFormatter("json")
	require.NoError(t, err)
	rows := []Row{{"age": value.Int(25)}}
	out, err := f.FormatRows([]string{"age"}, rows)
	require.NoError(t, err)
	assert.Contains(t, out, "\"age\": 25")
	assert.Contains(t, out, "\"count\": 1")
}

func TestFormatStatusBothFormats(t *testing.T) {
	table, _ := NewFormatter("table")
	ts, err := table.FormatStatus("table \"users\" created")
	require.NoError(t, err)
	assert.Equal(t, "table \"users\" created\n", ts)

	jsonFmt, _ := NewFormatter("json")
	js, err := jsonFmt.FormatStatus("table \"users\" created")
	require.NoError(t, err)
	assert.Contains(t, js, "table \\\"users\\\" created")
}

func TestColumnsOfFallsBackToSortedUnion(t *testing.T) {
	rows := []Row{{"b": value.Int(1), "a": value.Int(2)}}
	cols := columnsOf(nil, rows)
	assert.Equal(t, []string{"a", "b"}, cols)
}

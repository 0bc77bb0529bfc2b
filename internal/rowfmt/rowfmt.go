// Package rowfmt formats query rows and DDL/DML status records for
// display, grounded on internal/output/formatter.go's Format enum +
// Formatter interface + NewFormatter factory, retargeted from schema
// diffs/migrations to the column-name→value row mappings and status
// records spec.md §6's front door returns.
package rowfmt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"reldb/internal/value"
)

// Row mirrors vm.Row's underlying type (map[string]value.Value) without
// importing internal/vm, so a caller can pass either a vm.Row or a
// storage.Row directly via a plain conversion.
type Row = map[string]value.Value

// Format is the set of supported output formats.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Formatter renders a result set (columns + rows) or a status message.
type Formatter interface {
	FormatRows(columns []string, rows []Row) (string, error)
	FormatStatus(message string) (string, error)
}

// NewFormatter resolves a Formatter by name, defaulting to FormatTable
// when name is empty.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatTable:
		return tableFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported row format: %s; use 'table' or 'json'", name)
	}
}

// columnsOf returns the column names to render: the caller-supplied
// list if non-empty, else the union of every row's keys in sorted order
// (so DDL/DML status rows and ad-hoc row maps still format sensibly).
func columnsOf(columns []string, rows []Row) []string {
	if len(columns) > 0 {
		return columns
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

type tableFormatter struct{}

func (tableFormatter) FormatRows(columns []string, rows []Row) (string, error) {
	cols := columnsOf(columns, rows)
	if len(cols) == 0 {
		return "(no columns)\n", nil
	}
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = make([]string, len(cols))
		for j, c := range cols {
			s := cellText(r[c])
			cells[i][j] = s
			if len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	var b strings.Builder
	writeRow(&b, cols, widths)
	writeSeparator(&b, widths)
	for _, row := range cells {
		writeRow(&b, row, widths)
	}
	fmt.Fprintf(&b, "(%d row(s))\n", len(rows))
	return b.String(), nil
}

func (tableFormatter) FormatStatus(message string) (string, error) {
	return message + "\n", nil
}

func cellText(v value.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, c := range cells {
		fmt.Fprintf(b, "%-*s", widths[i]+2, c)
	}
	b.WriteByte('\n')
}

func writeSeparator(b *strings.Builder, widths []int) {
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+1))
		b.WriteByte(' ')
	}
	b.WriteByte('\n')
}

type jsonFormatter struct{}

func (jsonFormatter) FormatRows(columns []string, rows []Row) (string, error) {
	cols := columnsOf(columns, rows)
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		obj := make(map[string]any, len(cols))
		for _, c := range cols {
			obj[c] = jsonValue(r[c])
		}
		out[i] = obj
	}
	payload := map[string]any{"columns": cols, "rows": out, "count": len(rows)}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func (jsonFormatter) FormatStatus(message string) (string, error) {
	b, err := json.MarshalIndent(map[string]string{"message": message}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func jsonValue(v value.Value) any {
	switch v.Kind() {
	case value.Integer:
		return v.Int()
	case value.Float:
		return v.Float()
	case value.Boolean:
		return v.Bool()
	case value.String:
		return v.Text()
	default:
		return nil
	}
}

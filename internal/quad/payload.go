package quad

import (
	"reldb/internal/ast"
	"reldb/internal/value"
)

// DdlPayload is the structured replacement for the ad-hoc
// "{name, type, constraints:[...]}" / "table(col1,col2,...)" string
// encoding spec.md §6 describes between C8 and C12. spec.md §9 flags
// the string form as fragile (no escaping) and asks a rewrite not to
// carry it across the abstraction boundary; this type is that rewrite.
// Neither payload type renders or parses that textual form.
type DdlPayload struct {
	ColumnSpecs []ColumnSpec // CREATE_TABLE, ALTER_TABLE_ADD (len 1)
	IndexTable  string       // CREATE_INDEX
	IndexCols   []string     // CREATE_INDEX
	IndexUnique bool         // CREATE_INDEX
}

type ColumnSpec struct {
	Name        string
	Type        string
	MaxLength   int
	Constraints []string // "NOT NULL", "PRIMARY KEY", "UNIQUE"
	HasDefault  bool
	Default     value.Value
}

// DmlPayload is the structured replacement for the
// "COLUMNS=...;VALUES=...", "SET=...;WHERE=...", "<pred|ALL>" string
// encodings of spec.md §6.
type DmlPayload struct {
	Columns []string      // INSERT: explicit column list, nil means ALL
	Values  []value.Value // INSERT

	Assignments map[string]value.Value // UPDATE: column -> new literal operand
	// AssignOps records, for "col = col + literal" self-referencing update
	// expressions, the operator ("+" or "-") per column; absent entries are
	// plain literal assignments.
	AssignOps map[string]string

	WhereAll bool             // true means "<pred|ALL>" resolved to ALL (no WHERE)
	Where    *ast.WhereClause // UPDATE / DELETE
}

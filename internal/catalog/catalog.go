// Package catalog holds the table/column/index metadata model (spec.md
// §3: Column descriptor, Table metadata, Index descriptor) and the
// analyzer's symbol table. The Validate chain is grounded on the
// teacher's internal/core/validation.go ValidationError pattern:
// typed errors returned from a chain of small checks rather than a
// generic "invalid schema" string.
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"reldb/internal/value"
)

// ColumnKind is the closed set of column types spec.md §3/§6 supports.
type ColumnKind = value.Kind

const (
	KindInteger = value.Integer
	KindFloat   = value.Float
	KindString  = value.String
	KindBoolean = value.Boolean
)

// Column is the column descriptor of spec.md §3.
type Column struct {
	Name       string     `toml:"name"`
	Kind       ColumnKind `toml:"-"`
	KindName   string     `toml:"kind"` // TOML can't (de)serialize the int Kind directly
	MaxLength  int        `toml:"max_length,omitempty"`
	Nullable   bool       `toml:"nullable"`
	PrimaryKey bool       `toml:"primary_key"`
	Unique     bool       `toml:"unique"`
	HasDefault bool       `toml:"has_default"`
	Default    string     `toml:"default,omitempty"` // literal text form, parsed via value round-trip
}

// SyncKindName keeps KindName (the persisted field) aligned with Kind
// (the in-memory field) after either is set directly.
func (c *Column) SyncKindName() {
	c.KindName = KindToName(c.Kind)
}

// Default2Value parses the column's string-form Default into a typed
// value.Value of the column's own kind, used when a row omits the
// column on INSERT or when ALTER TABLE ADD backfills existing rows.
func (c *Column) Default2Value() value.Value {
	if !c.HasDefault {
		return value.NullValue()
	}
	switch c.Kind {
	case value.Integer:
		if n, err := strconv.ParseInt(c.Default, 10, 64); err == nil {
			return value.Int(n)
		}
	case value.Float:
		if f, err := strconv.ParseFloat(c.Default, 64); err == nil {
			return value.Flt(f)
		}
	case value.Boolean:
		return value.Bool(strings.EqualFold(c.Default, "true"))
	}
	return value.Str(c.Default)
}

func KindToName(k ColumnKind) string {
	switch k {
	case value.Integer:
		return "INTEGER"
	case value.Float:
		return "FLOAT"
	case value.String:
		return "STRING"
	case value.Boolean:
		return "BOOLEAN"
	default:
		return "STRING"
	}
}

func KindFromName(s string) ColumnKind {
	switch strings.ToUpper(s) {
	case "INTEGER", "INT":
		return value.Integer
	case "FLOAT", "DOUBLE", "DECIMAL":
		return value.Float
	case "BOOLEAN", "BOOL":
		return value.Boolean
	default:
		return value.String
	}
}

// Index is the index descriptor of spec.md §3.
type Index struct {
	Name    string   `toml:"name"`
	Table   string   `toml:"table"`
	Columns []string `toml:"columns"`
	Unique  bool     `toml:"unique"`
	Order   int      `toml:"order"`
}

// Table is the table metadata of spec.md §3.
type Table struct {
	Name         string    `toml:"name"`
	Columns      []*Column `toml:"columns"`
	PrimaryKey   string    `toml:"primary_key,omitempty"`
	PageList     []int     `toml:"page_list"`
	RecordCount  int       `toml:"record_count"`
}

func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

func (t *Table) HasColumn(name string) bool { return t.Column(name) != nil }

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog is the in-memory mapping from table name to metadata, plus the
// index descriptors registered against those tables (C3's catalog).
type Catalog struct {
	Tables  map[string]*Table `toml:"-"`
	Indexes map[string]*Index `toml:"-"`
}

func New() *Catalog {
	return &Catalog{Tables: map[string]*Table{}, Indexes: map[string]*Index{}}
}

func (c *Catalog) GetTable(name string) (*Table, bool) {
	t, ok := c.Tables[strings.ToLower(name)]
	return t, ok
}

func (c *Catalog) PutTable(t *Table) {
	c.Tables[strings.ToLower(t.Name)] = t
}

func (c *Catalog) DropTable(name string) {
	delete(c.Tables, strings.ToLower(name))
	for k, idx := range c.Indexes {
		if strings.EqualFold(idx.Table, name) {
			delete(c.Indexes, k)
		}
	}
}

func (c *Catalog) PutIndex(idx *Index) {
	c.Indexes[strings.ToLower(idx.Name)] = idx
}

func (c *Catalog) GetIndex(name string) (*Index, bool) {
	idx, ok := c.Indexes[strings.ToLower(name)]
	return idx, ok
}

// IndexesOn returns every index registered on the given table that
// covers the given column as its leading key column.
func (c *Catalog) IndexesOn(table, column string) []*Index {
	var out []*Index
	for _, idx := range c.Indexes {
		if strings.EqualFold(idx.Table, table) && len(idx.Columns) > 0 && strings.EqualFold(idx.Columns[0], column) {
			out = append(out, idx)
		}
	}
	return out
}

// ListTables returns table names in deterministic (sorted) order.
func (c *Catalog) ListTables() []string {
	names := make([]string, 0, len(c.Tables))
	for _, t := range c.Tables {
		names = append(names, t.Name)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Closure validates spec.md §8's "Catalog closure" invariant: every
// index's table exists, and every index column exists in its table.
func (c *Catalog) Closure() error {
	for _, idx := range c.Indexes {
		t, ok := c.GetTable(idx.Table)
		if !ok {
			return fmt.Errorf("catalog closure violated: index %q references missing table %q", idx.Name, idx.Table)
		}
		for _, col := range idx.Columns {
			if !t.HasColumn(col) {
				return fmt.Errorf("catalog closure violated: index %q references missing column %q on table %q", idx.Name, col, idx.Table)
			}
		}
	}
	return nil
}

// --- Symbol table (C8) ---

// SymbolKind closes the set of symbol kinds spec.md §3 names.
type SymbolKind int

const (
	SymTable SymbolKind = iota
	SymColumn
	SymIdentifier
	SymLiteral
	SymColumnList
)

type Symbol struct {
	Name  string
	Kind  SymbolKind
	Scope string
}

// SymbolTable is a scoped map from name to symbol, used for semantic
// diagnostics (ambiguous-reference detection in particular).
type SymbolTable struct {
	scopes []map[string]*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{scopes: []map[string]*Symbol{{}}}
}

func (s *SymbolTable) PushScope() { s.scopes = append(s.scopes, map[string]*Symbol{}) }
func (s *SymbolTable) PopScope() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

func (s *SymbolTable) Define(sym *Symbol) {
	s.scopes[len(s.scopes)-1][strings.ToLower(sym.Name)] = sym
}

func (s *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if sym, ok := s.scopes[i][strings.ToLower(name)]; ok {
			return sym, true
		}
	}
	return nil, false
}

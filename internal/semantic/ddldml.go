package semantic

import (
	"strings"

	"reldb/internal/ast"
	"reldb/internal/catalog"
	"reldb/internal/errs"
	"reldb/internal/quad"
	"reldb/internal/value"
)

// AnalyzeDDLDML validates DDL/DML well-formedness and emits the single
// high-level quadruple spec.md §4.8/§6 describes, whose arg2 carries a
// structured quad.DdlPayload/quad.DmlPayload instead of the fragile
// string sub-language spec.md §9 flags for replacement.
func AnalyzeDDLDML(stmt *ast.Stmt, cat *catalog.Catalog) (quad.List, error) {
	switch stmt.Kind {
	case ast.KindCreateTable:
		return analyzeCreateTable(stmt.CreateTable, cat)
	case ast.KindDropTable:
		return analyzeDropTable(stmt.DropTable, cat)
	case ast.KindAlterTableAdd:
		return analyzeAlterTableAdd(stmt.AlterTable, cat)
	case ast.KindCreateIndex:
		return analyzeCreateIndex(stmt.CreateIndex, cat)
	case ast.KindInsert:
		return analyzeInsert(stmt.Insert, cat)
	case ast.KindUpdate:
		return analyzeUpdate(stmt.Update, cat)
	case ast.KindDelete:
		return analyzeDelete(stmt.Delete, cat)
	default:
		return nil, errs.NewSemantic(errs.TypeMismatch, "not a DDL/DML statement")
	}
}

func columnDefToSpec(c ast.ColumnDef) quad.ColumnSpec {
	var cons []string
	if c.NotNull {
		cons = append(cons, "NOT NULL")
	}
	if c.PrimaryKey {
		cons = append(cons, "PRIMARY KEY")
	}
	if c.Unique {
		cons = append(cons, "UNIQUE")
	}
	return quad.ColumnSpec{Name: c.Name, Type: c.Type, MaxLength: c.MaxLength, Constraints: cons, HasDefault: c.HasDefault, Default: c.Default}
}

func analyzeCreateTable(stmt *ast.CreateTableStmt, cat *catalog.Catalog) (quad.List, error) {
	if _, exists := cat.GetTable(stmt.Table); exists {
		return nil, errs.NewSemantic(errs.TableAlreadyExists, "table %q already exists", stmt.Table)
	}
	seen := map[string]bool{}
	pkCount := 0
	specs := make([]quad.ColumnSpec, 0, len(stmt.Columns))
	for _, c := range stmt.Columns {
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			return nil, errs.NewSemantic(errs.DuplicateColumn, "duplicate column %q", c.Name)
		}
		seen[lower] = true
		if !isValidType(c.Type) {
			return nil, errs.NewSemantic(errs.TypeMismatch, "invalid column type %q for column %q", c.Type, c.Name)
		}
		if c.PrimaryKey {
			pkCount++
		}
		if c.HasDefault {
			colKind := catalog.KindFromName(c.Type)
			if _, err := value.CoerceTo(c.Default, colKind); err != nil {
				return nil, errs.NewSemantic(errs.InvalidDefault, "default value for column %q: %v", c.Name, err)
			}
		}
		specs = append(specs, columnDefToSpec(c))
	}
	if pkCount > 1 {
		return nil, errs.NewSemantic(errs.InvalidDefault, "table %q declares more than one PRIMARY KEY column", stmt.Table)
	}
	payload := &quad.DdlPayload{ColumnSpecs: specs}
	return quad.List{{Op: quad.CreateTable, Arg1: stmt.Table, Arg2: payload}}, nil
}

func isValidType(t string) bool {
	switch t {
	case "INTEGER", "INT", "FLOAT", "DOUBLE", "DECIMAL", "VARCHAR", "CHAR", "TEXT", "BOOLEAN", "BOOL":
		return true
	}
	return false
}

func analyzeDropTable(stmt *ast.DropTableStmt, cat *catalog.Catalog) (quad.List, error) {
	if _, exists := cat.GetTable(stmt.Table); !exists {
		return nil, errs.NewSemantic(errs.TableNotExist, "table %q does not exist", stmt.Table)
	}
	return quad.List{{Op: quad.DropTable, Arg1: stmt.Table}}, nil
}

func analyzeAlterTableAdd(stmt *ast.AlterTableAddStmt, cat *catalog.Catalog) (quad.List, error) {
	t, exists := cat.GetTable(stmt.Table)
	if !exists {
		return nil, errs.NewSemantic(errs.TableNotExist, "table %q does not exist", stmt.Table)
	}
	if t.HasColumn(stmt.Column.Name) {
		return nil, errs.NewSemantic(errs.DuplicateColumn, "column %q already exists on table %q", stmt.Column.Name, stmt.Table)
	}
	if !isValidType(stmt.Column.Type) {
		return nil, errs.NewSemantic(errs.TypeMismatch, "invalid column type %q", stmt.Column.Type)
	}
	payload := &quad.DdlPayload{ColumnSpecs: []quad.ColumnSpec{columnDefToSpec(stmt.Column)}}
	return quad.List{{Op: quad.AlterTableAdd, Arg1: stmt.Table, Arg2: payload}}, nil
}

func analyzeCreateIndex(stmt *ast.CreateIndexStmt, cat *catalog.Catalog) (quad.List, error) {
	t, exists := cat.GetTable(stmt.Table)
	if !exists {
		return nil, errs.NewSemantic(errs.TableNotExist, "table %q does not exist", stmt.Table)
	}
	if _, exists := cat.GetIndex(stmt.IndexName); exists {
		return nil, errs.NewSemantic(errs.DuplicateColumn, "index %q already exists", stmt.IndexName)
	}
	for _, c := range stmt.Columns {
		if !t.HasColumn(c) {
			return nil, errs.NewSemantic(errs.ColumnNotExist, "column %q does not exist on table %q", c, stmt.Table)
		}
	}
	payload := &quad.DdlPayload{IndexTable: stmt.Table, IndexCols: stmt.Columns, IndexUnique: stmt.Unique}
	return quad.List{{Op: quad.CreateIndex, Arg1: stmt.IndexName, Arg2: payload}}, nil
}

func analyzeInsert(stmt *ast.InsertStmt, cat *catalog.Catalog) (quad.List, error) {
	t, exists := cat.GetTable(stmt.Table)
	if !exists {
		return nil, errs.NewSemantic(errs.TableNotExist, "table %q does not exist", stmt.Table)
	}
	cols := stmt.Columns
	if len(cols) == 0 {
		cols = t.ColumnNames()
	}
	if len(cols) != len(stmt.Values) {
		return nil, errs.NewSemantic(errs.TypeMismatch, "column count (%d) does not match value count (%d)", len(cols), len(stmt.Values))
	}
	for _, c := range cols {
		if !t.HasColumn(c) {
			return nil, errs.NewSemantic(errs.ColumnNotExist, "column %q does not exist on table %q", c, stmt.Table)
		}
	}
	payload := &quad.DmlPayload{Columns: cols, Values: stmt.Values}
	return quad.List{{Op: quad.Insert, Arg1: stmt.Table, Arg2: payload}}, nil
}

func analyzeUpdate(stmt *ast.UpdateStmt, cat *catalog.Catalog) (quad.List, error) {
	t, exists := cat.GetTable(stmt.Table)
	if !exists {
		return nil, errs.NewSemantic(errs.TableNotExist, "table %q does not exist", stmt.Table)
	}
	assigns := map[string]value.Value{}
	ops := map[string]string{}
	for _, a := range stmt.Assignments {
		if !t.HasColumn(a.Column) {
			return nil, errs.NewSemantic(errs.ColumnNotExist, "column %q does not exist on table %q", a.Column, stmt.Table)
		}
		if a.Op == "" {
			assigns[a.Column] = a.Value
		} else {
			// The literal RHS is carried; the VM resolves "col + literal"
			// against the current row value at execution time.
			assigns[a.Column] = a.Rhs
			ops[a.Column] = a.Op
		}
	}
	scope := newScope()
	scope.add(stmt.Table, t)
	if stmt.Where != nil {
		if err := validateWhereColumns(stmt.Where, scope); err != nil {
			return nil, err
		}
	}
	payload := &quad.DmlPayload{Assignments: assigns, AssignOps: ops, WhereAll: stmt.Where == nil, Where: stmt.Where}
	return quad.List{{Op: quad.Update, Arg1: stmt.Table, Arg2: payload}}, nil
}

func analyzeDelete(stmt *ast.DeleteStmt, cat *catalog.Catalog) (quad.List, error) {
	t, exists := cat.GetTable(stmt.Table)
	if !exists {
		return nil, errs.NewSemantic(errs.TableNotExist, "table %q does not exist", stmt.Table)
	}
	scope := newScope()
	scope.add(stmt.Table, t)
	if stmt.Where != nil {
		if err := validateWhereColumns(stmt.Where, scope); err != nil {
			return nil, err
		}
	}
	payload := &quad.DmlPayload{WhereAll: stmt.Where == nil, Where: stmt.Where}
	return quad.List{{Op: quad.Delete, Arg1: stmt.Table, Arg2: payload}}, nil
}

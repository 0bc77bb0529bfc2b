// Package semantic implements the two analyzer flavors of C8 (spec.md
// §4.8): the query analyzer (SELECT, possibly extended with
// JOIN/GROUP BY/aggregates/HAVING/ORDER BY/LIMIT) and the DDL/DML
// analyzer. Both share the analyze(ast) -> quadruples interface,
// grounded on original_source/src/compiler/semantic/analyzer.py's
// emission order and the teacher's typed-error idiom
// (internal/core/validation.go's ValidationError chain, generalized
// into errs.SemanticError here).
package semantic

import (
	"fmt"
	"strings"

	"reldb/internal/ast"
	"reldb/internal/catalog"
	"reldb/internal/errs"
	"reldb/internal/quad"
)

// tableScope resolves an alias or table name to the underlying table
// metadata, supporting the "alias.column" qualified forms spec.md §4.8
// requires the query analyzer to resolve.
type tableScope struct {
	aliasToTable map[string]*catalog.Table
	order        []string // aliases in FROM/JOIN order, for ambiguous-reference checks
}

func newScope() *tableScope {
	return &tableScope{aliasToTable: map[string]*catalog.Table{}}
}

func (s *tableScope) add(alias string, t *catalog.Table) {
	s.aliasToTable[strings.ToLower(alias)] = t
	s.order = append(s.order, alias)
}

func (s *tableScope) resolve(qualifier string) (*catalog.Table, bool) {
	t, ok := s.aliasToTable[strings.ToLower(qualifier)]
	return t, ok
}

// resolveColumn finds which table a possibly-unqualified column belongs
// to. If qualifier is given, it must resolve to a known alias. If
// omitted, the column must be unambiguous across every table in scope
// (errs.AmbiguousReference otherwise) — recovered from
// original_source/src/compiler/semantic/analyzer.py per SPEC_FULL.md's
// note on ambiguous-column detection.
func (s *tableScope) resolveColumn(qualifier, column string) (*catalog.Table, error) {
	if qualifier != "" {
		t, ok := s.resolve(qualifier)
		if !ok {
			return nil, errs.NewSemantic(errs.TableNotExist, "unknown table alias %q", qualifier)
		}
		if !t.HasColumn(column) {
			return nil, errs.NewSemantic(errs.ColumnNotExist, "column %q does not exist on table %q", column, t.Name)
		}
		return t, nil
	}
	var found *catalog.Table
	for _, alias := range s.order {
		t := s.aliasToTable[strings.ToLower(alias)]
		if t.HasColumn(column) {
			if found != nil && found != t {
				return nil, errs.NewSemantic(errs.AmbiguousReference, "column %q is ambiguous between tables %q and %q", column, found.Name, t.Name)
			}
			found = t
		}
	}
	if found == nil {
		return nil, errs.NewSemantic(errs.ColumnNotExist, "column %q does not exist on any table in scope", column)
	}
	return found, nil
}

// AnalyzeSelect validates a SELECT AST against the catalog and emits its
// quadruple program, in the fixed order spec.md §4.8 specifies: BEGIN ->
// SELECT(column-list, table) -> JOIN* -> GROUP_BY? -> aggregates ->
// HAVING? -> FILTER -> PROJECT -> ORDER_BY? -> LIMIT/OFFSET? -> OUTPUT -> END.
func AnalyzeSelect(stmt *ast.SelectStmt, cat *catalog.Catalog) (quad.List, error) {
	symtab := catalog.NewSymbolTable()
	var quads quad.List
	var temps quad.TempAllocator

	baseTable, ok := cat.GetTable(stmt.Table)
	if !ok {
		return nil, errs.NewSemantic(errs.TableNotExist, "table %q does not exist", stmt.Table)
	}
	symtab.Define(&catalog.Symbol{Name: stmt.Table, Kind: catalog.SymTable})

	scope := newScope()
	scope.add(stmt.Alias, baseTable)

	quads = append(quads, quad.Quadruple{Op: quad.Begin})

	scanTemp := temps.Next()
	quads = append(quads, quad.Quadruple{Op: quad.Select, Arg1: selectColumnList(stmt), Arg2: stmt.Table, Result: scanTemp})
	lastTemp := scanTemp

	for _, j := range stmt.Joins {
		jt, ok := cat.GetTable(j.Table)
		if !ok {
			return nil, errs.NewSemantic(errs.TableNotExist, "table %q does not exist", j.Table)
		}
		scope.add(j.Alias, jt)
		if j.LeftQualifier != "" {
			if lt, ok := scope.resolve(j.LeftQualifier); ok && !lt.HasColumn(j.LeftColumn) {
				return nil, errs.NewSemantic(errs.ColumnNotExist, "column %q does not exist on table %q", j.LeftColumn, lt.Name)
			}
		}
		if !jt.HasColumn(j.RightColumn) {
			return nil, errs.NewSemantic(errs.ColumnNotExist, "column %q does not exist on table %q", j.RightColumn, jt.Name)
		}
		joinTemp := temps.Next()
		op := joinOp(j.Kind)
		quads = append(quads, quad.Quadruple{
			Op: op, Arg1: lastTemp, Arg2: j.Table,
			Result: fmt.Sprintf("%s|%s.%s=%s.%s", joinTemp, j.LeftQualifier, j.LeftColumn, j.Alias, j.RightColumn),
		})
		lastTemp = joinTemp
	}

	if stmt.GroupBy != nil {
		for _, c := range stmt.GroupBy.Columns {
			if _, err := scope.resolveColumn("", c); err != nil {
				return nil, err
			}
		}
		groupTemp := temps.Next()
		quads = append(quads, quad.Quadruple{Op: quad.GroupBy, Arg1: lastTemp, Arg2: stmt.GroupBy.Columns, Result: groupTemp})
		lastTemp = groupTemp
	}

	aggAliasToTemp := map[string]string{}
	for _, item := range stmt.Items {
		if item.Aggregate == nil {
			continue
		}
		if item.Aggregate.Column != "*" {
			if _, err := scope.resolveColumn("", item.Aggregate.Column); err != nil {
				return nil, err
			}
		}
		aggTemp := temps.Next()
		op := aggregateOp(item.Aggregate.Func)
		quads = append(quads, quad.Quadruple{Op: op, Arg1: lastTemp, Arg2: item.Aggregate.Column, Result: aggTemp})
		alias := item.Aggregate.Alias
		if alias == "" {
			alias = strings.ToLower(item.Aggregate.Func) + "(" + item.Aggregate.Column + ")"
		}
		aggAliasToTemp[alias] = aggTemp
		lastTemp = aggTemp
	}

	if stmt.Having != nil {
		if err := validateWhereColumns(stmt.Having, scope); err != nil {
			return nil, err
		}
		havingTemp := temps.Next()
		quads = append(quads, quad.Quadruple{Op: quad.Having, Arg1: lastTemp, Arg2: stmt.Having, Result: havingTemp})
		lastTemp = havingTemp
	}

	if stmt.Where != nil {
		if err := validateWhereColumns(stmt.Where, scope); err != nil {
			return nil, err
		}
		filterTemp := temps.Next()
		quads = append(quads, quad.Quadruple{Op: quad.Filter, Arg1: lastTemp, Arg2: stmt.Where, Result: filterTemp})
		lastTemp = filterTemp
	}

	for _, item := range stmt.Items {
		if item.Aggregate != nil || item.Star {
			continue
		}
		if _, err := scope.resolveColumn(item.Qualifier, item.Column); err != nil {
			return nil, err
		}
	}
	projectTemp := temps.Next()
	quads = append(quads, quad.Quadruple{Op: quad.Project, Arg1: lastTemp, Arg2: stmt.Items, Result: projectTemp})
	lastTemp = projectTemp

	if stmt.OrderBy != nil {
		if _, err := scope.resolveColumn("", stmt.OrderBy.Column); err != nil {
			return nil, err
		}
		orderTemp := temps.Next()
		quads = append(quads, quad.Quadruple{Op: quad.OrderBy, Arg1: lastTemp, Arg2: stmt.OrderBy, Result: orderTemp})
		lastTemp = orderTemp
	}

	if stmt.Limit != nil {
		limitTemp := temps.Next()
		quads = append(quads, quad.Quadruple{Op: quad.Limit, Arg1: lastTemp, Arg2: stmt.Limit.Limit, Result: limitTemp})
		lastTemp = limitTemp
		if stmt.Limit.Offset != 0 {
			offsetTemp := temps.Next()
			quads = append(quads, quad.Quadruple{Op: quad.Offset, Arg1: lastTemp, Arg2: stmt.Limit.Offset, Result: offsetTemp})
			lastTemp = offsetTemp
		}
	}

	quads = append(quads, quad.Quadruple{Op: quad.Output, Arg1: lastTemp, Result: "RESULT"})
	quads = append(quads, quad.Quadruple{Op: quad.End})

	return quads, nil
}

func selectColumnList(stmt *ast.SelectStmt) []string {
	var cols []string
	for _, it := range stmt.Items {
		if it.Star {
			cols = append(cols, "*")
		} else if it.Aggregate != nil {
			cols = append(cols, it.Aggregate.Func+"("+it.Aggregate.Column+")")
		} else {
			cols = append(cols, it.Column)
		}
	}
	return cols
}

func joinOp(k ast.JoinKind) quad.Op {
	switch k {
	case ast.LeftJoin:
		return quad.LeftJoin
	case ast.RightJoin:
		return quad.RightJoin
	case ast.FullJoin:
		return quad.FullJoin
	default:
		return quad.InnerJoin
	}
}

func aggregateOp(fn string) quad.Op {
	switch fn {
	case "COUNT":
		return quad.Count
	case "SUM":
		return quad.Sum
	case "AVG":
		return quad.Avg
	case "MIN":
		return quad.Min
	case "MAX":
		return quad.Max
	default:
		return quad.Count
	}
}

// validateWhereColumns walks a WhereClause tree and validates every leaf
// condition's column reference against the scope (spec.md §4.8: "WHERE
// column references are validated against the current table name").
func validateWhereColumns(w *ast.WhereClause, scope *tableScope) error {
	if w == nil {
		return nil
	}
	if w.Leaf != nil {
		if w.Leaf.Aggregate != "" {
			if w.Leaf.AggColumn == "*" {
				return nil
			}
			_, err := scope.resolveColumn("", w.Leaf.AggColumn)
			return err
		}
		_, err := scope.resolveColumn(w.Leaf.Qualifier, w.Leaf.Column)
		return err
	}
	if err := validateWhereColumns(w.Left, scope); err != nil {
		return err
	}
	return validateWhereColumns(w.Right, scope)
}

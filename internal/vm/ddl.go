package vm

import (
	"fmt"

	"reldb/internal/ast"
	"reldb/internal/catalog"
	"reldb/internal/instr"
	"reldb/internal/quad"
	"reldb/internal/storage"
	"reldb/internal/value"
)

func evalWhereOnStorageRow(w *ast.WhereClause, r storage.Row) (bool, error) {
	row := Row(r)
	return evalWhere(w, row)
}

func specToColumn(spec quad.ColumnSpec) *catalog.Column {
	col := &catalog.Column{
		Name:       spec.Name,
		Kind:       catalog.KindFromName(spec.Type),
		MaxLength:  spec.MaxLength,
		Nullable:   true,
		HasDefault: spec.HasDefault,
	}
	for _, c := range spec.Constraints {
		switch c {
		case "NOT NULL":
			col.Nullable = false
		case "PRIMARY KEY":
			col.PrimaryKey = true
			col.Nullable = false
		case "UNIQUE":
			col.Unique = true
		}
	}
	if spec.HasDefault {
		col.Default = spec.Default.String()
	}
	col.SyncKindName()
	return col
}

func (c *Context) execCreateTable(in *instr.Instruction) (*Result, error) {
	table := in.Operands[0].Name
	payload, _ := in.Operands[1].Raw.(*quad.DdlPayload)
	columns := make([]*catalog.Column, len(payload.ColumnSpecs))
	for i, spec := range payload.ColumnSpecs {
		columns[i] = specToColumn(spec)
	}
	if err := c.facade.CreateTable(table, columns); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("table %q created", table)}, nil
}

func (c *Context) execDropTable(in *instr.Instruction) (*Result, error) {
	table := in.Operands[0].Name
	if err := c.facade.DropTable(table); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("table %q dropped", table)}, nil
}

func (c *Context) execAlterTableAdd(in *instr.Instruction) (*Result, error) {
	table := in.Operands[0].Name
	payload, _ := in.Operands[1].Raw.(*quad.DdlPayload)
	col := specToColumn(payload.ColumnSpecs[0])
	if err := c.facade.AddColumn(table, col); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("column %q added to table %q", col.Name, table)}, nil
}

func (c *Context) execCreateIndex(in *instr.Instruction) (*Result, error) {
	name := in.Operands[0].Name
	payload, _ := in.Operands[1].Raw.(*quad.DdlPayload)
	if err := c.facade.CreateIndex(name, payload.IndexTable, payload.IndexCols, payload.IndexUnique); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("index %q created on %q", name, payload.IndexTable)}, nil
}

func (c *Context) execInsert(in *instr.Instruction) (*Result, error) {
	table := in.Operands[0].Name
	payload, _ := in.Operands[1].Raw.(*quad.DmlPayload)
	row := storage.Row{}
	for i, col := range payload.Columns {
		row[col] = payload.Values[i]
	}
	if _, err := c.facade.Insert(table, row); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("1 row inserted into %q", table)}, nil
}

func (c *Context) execUpdate(in *instr.Instruction) (*Result, error) {
	table := in.Operands[0].Name
	payload, _ := in.Operands[1].Raw.(*quad.DmlPayload)
	rids, rows, err := c.facade.Select(table)
	if err != nil {
		return nil, err
	}
	updated := 0
	for i, r := range rows {
		ok := payload.WhereAll
		if !ok {
			v, err := evalWhereOnStorageRow(payload.Where, r)
			if err != nil {
				return nil, err
			}
			ok = v
		}
		if !ok {
			continue
		}
		newRow := storage.Row{}
		for k, v := range r {
			newRow[k] = v
		}
		for col, newVal := range payload.Assignments {
			if op, hasOp := payload.AssignOps[col]; hasOp {
				newRow[col] = applyArith(r[col], newVal, op)
			} else {
				newRow[col] = newVal
			}
		}
		if err := c.facade.Update(table, rids[i], newRow); err != nil {
			return nil, err
		}
		updated++
	}
	return &Result{Message: fmt.Sprintf("%d row(s) updated in %q", updated, table)}, nil
}

func (c *Context) execDelete(in *instr.Instruction) (*Result, error) {
	table := in.Operands[0].Name
	payload, _ := in.Operands[1].Raw.(*quad.DmlPayload)
	rids, rows, err := c.facade.Select(table)
	if err != nil {
		return nil, err
	}
	deleted := 0
	for i, r := range rows {
		ok := payload.WhereAll
		if !ok {
			v, err := evalWhereOnStorageRow(payload.Where, r)
			if err != nil {
				return nil, err
			}
			ok = v
		}
		if !ok {
			continue
		}
		if err := c.facade.Delete(table, rids[i]); err != nil {
			return nil, err
		}
		deleted++
	}
	return &Result{Message: fmt.Sprintf("%d row(s) deleted from %q", deleted, table)}, nil
}

func applyArith(old, rhs value.Value, op string) value.Value {
	l, r := old.Float(), rhs.Float()
	var result float64
	if op == "-" {
		result = l - r
	} else {
		result = l + r
	}
	if old.Kind() == value.Integer && rhs.Kind() == value.Integer {
		return value.Int(int64(result))
	}
	return value.Flt(result)
}

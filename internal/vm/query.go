package vm

import (
	"sort"
	"strings"

	"reldb/internal/ast"
	"reldb/internal/errs"
	"reldb/internal/instr"
	"reldb/internal/value"
)

// scanTable reads every row of table and qualifies each column twice:
// once bare, once as "table.column", so unqualified and qualified WHERE/
// ON references both resolve against the resulting RowSet.
func (c *Context) scanTable(table string) (*RowSet, error) {
	_, rows, err := c.facade.Select(table)
	if err != nil {
		return nil, err
	}
	t, _ := c.cat.GetTable(table)
	rs := &RowSet{Columns: t.ColumnNames()}
	for _, r := range rows {
		row := Row{}
		for k, v := range r {
			row[k] = v
			row[table+"."+k] = v
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

func (c *Context) execScan(in *instr.Instruction) error {
	rs, err := c.scanTable(in.Operands[0].Name)
	if err != nil {
		return err
	}
	c.setReg(in.Result, rs)
	return nil
}

// joinCondition is packed by codegen as "leftQualifier.leftColumn=rightAlias.rightColumn".
func parseJoinCondition(s string) (lq, lc, rq, rc string, ok bool) {
	eq := strings.Index(s, "=")
	if eq < 0 {
		return
	}
	left, right := s[:eq], s[eq+1:]
	ld := strings.Index(left, ".")
	rd := strings.Index(right, ".")
	if ld < 0 || rd < 0 {
		return
	}
	return left[:ld], left[ld+1:], right[:rd], right[rd+1:], true
}

// execJoin reads the right table itself and, when codegen folded the
// left side's SELECT into this instruction (instr.OperandTableRef
// rather than a register), reads the left table itself too instead of
// pulling a precomputed RowSet out of a register.
func (c *Context) execJoin(in *instr.Instruction) error {
	var left *RowSet
	if in.Operands[0].Kind == instr.OperandTableRef {
		l, err := c.scanTable(in.Operands[0].Name)
		if err != nil {
			return err
		}
		left = l
	} else {
		left = c.reg(in.Operands[0])
	}
	rightTable := in.Operands[1].Name
	raw, _ := in.Operands[2].Raw.(string)
	condition := raw
	if i := strings.Index(raw, "|"); i >= 0 {
		condition = raw[i+1:]
	}
	_, rightRows, err := c.facade.Select(rightTable)
	if err != nil {
		return err
	}
	t, _ := c.cat.GetTable(rightTable)

	_, _, _, rc, ok := parseJoinCondition(condition)
	if !ok {
		return errs.NewExecution(errs.UnknownInstruction, "malformed join condition %q", condition)
	}

	rightRowSet := make([]Row, 0, len(rightRows))
	for _, r := range rightRows {
		row := Row{}
		for k, v := range r {
			row[k] = v
			row[rightTable+"."+k] = v
		}
		rightRowSet = append(rightRowSet, row)
	}

	var out []Row
	leftCols := append([]string{}, left.Columns...)
	rs := &RowSet{Columns: append(leftCols, t.ColumnNames()...)}

	matchedRight := map[int]bool{}
	for _, lrow := range left.Rows {
		lv, lok := findJoinValue(lrow, condition, true)
		matched := false
		for ri, rrow := range rightRowSet {
			rv, rok := rrow[rc]
			if !rok {
				rv, rok = findJoinValue(rrow, condition, false)
			}
			if lok && rok && value.Equal(lv, rv) {
				out = append(out, mergeRows(lrow, rrow))
				matched = true
				matchedRight[ri] = true
			}
		}
		if !matched && (in.Op == instr.LeftJoin || in.Op == instr.FullJoin) {
			out = append(out, mergeRows(lrow, nullRowFromColumns(t.ColumnNames())))
		}
	}
	if in.Op == instr.RightJoin || in.Op == instr.FullJoin {
		for ri, rrow := range rightRowSet {
			if !matchedRight[ri] {
				out = append(out, mergeRows(nullRowFromColumns(left.Columns), rrow))
			}
		}
	}

	rs.Rows = out
	c.setReg(in.Result, rs)
	return nil
}

func findJoinValue(row Row, condition string, left bool) (value.Value, bool) {
	lq, lc, rq, rc, ok := parseJoinCondition(condition)
	if !ok {
		return value.Value{}, false
	}
	if left {
		if v, ok := row[lq+"."+lc]; ok {
			return v, true
		}
		v, ok := row[lc]
		return v, ok
	}
	if v, ok := row[rq+"."+rc]; ok {
		return v, true
	}
	v, ok := row[rc]
	return v, ok
}

func mergeRows(a, b Row) Row {
	out := Row{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func nullRowFromColumns(cols []string) Row {
	row := Row{}
	for _, c := range cols {
		row[c] = value.NullValue()
	}
	return row
}

func (c *Context) execGroupBy(in *instr.Instruction) error {
	srcOperand := in.Operands[0]
	src := c.reg(srcOperand)
	cols, _ := in.Operands[1].Raw.([]string)
	groupOf := map[string]int{}
	var groups [][]Row
	var reps []Row
	for _, row := range src.Rows {
		key := groupKey(row, cols)
		idx, ok := groupOf[key]
		if !ok {
			idx = len(groups)
			groupOf[key] = idx
			groups = append(groups, nil)
			reps = append(reps, row)
		}
		groups[idx] = append(groups[idx], row)
	}
	rs := &RowSet{Columns: src.Columns, Rows: reps}
	c.setReg(in.Result, rs)
	if in.Result != nil {
		c.groups[in.Result.Register] = groups
	}
	return nil
}

func groupKey(row Row, cols []string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = row[col].String()
	}
	return strings.Join(parts, "\x1f")
}

func (c *Context) execAggregate(in *instr.Instruction) error {
	srcOperand := in.Operands[0]
	src := c.reg(srcOperand)
	column := in.Operands[1].Name
	alias := aggAlias(in.Op, column)

	groups, grouped := c.groups[srcOperand.Register]
	if !grouped {
		vals := extractColumn(src.Rows, column)
		result := applyAggregate(in.Op, vals)
		rs := &RowSet{Columns: []string{alias}, Rows: []Row{{alias: result}}}
		c.setReg(in.Result, rs)
		return nil
	}

	rows := make([]Row, len(groups))
	for i, members := range groups {
		out := Row{}
		for k, v := range src.Rows[i] {
			out[k] = v
		}
		out[alias] = applyAggregate(in.Op, extractColumn(members, column))
		rows[i] = out
	}
	rs := &RowSet{Columns: append(append([]string{}, src.Columns...), alias), Rows: rows}
	c.setReg(in.Result, rs)
	if in.Result != nil {
		c.groups[in.Result.Register] = groups
	}
	return nil
}

func aggAlias(op instr.Op, column string) string {
	return strings.ToLower(string(op)) + "(" + column + ")"
}

func extractColumn(rows []Row, column string) []value.Value {
	var out []value.Value
	for _, r := range rows {
		if column == "*" {
			out = append(out, value.Int(1))
			continue
		}
		if v, ok := r[column]; ok {
			out = append(out, v)
		}
	}
	return out
}

func applyAggregate(op instr.Op, vals []value.Value) value.Value {
	switch op {
	case instr.Count:
		return value.Int(int64(len(vals)))
	case instr.Sum:
		var sum float64
		isInt := true
		for _, v := range vals {
			sum += v.Float()
			if v.Kind() != value.Integer {
				isInt = false
			}
		}
		if isInt {
			return value.Int(int64(sum))
		}
		return value.Flt(sum)
	case instr.Avg:
		if len(vals) == 0 {
			return value.NullValue()
		}
		var sum float64
		for _, v := range vals {
			sum += v.Float()
		}
		return value.Flt(sum / float64(len(vals)))
	case instr.Min:
		return extremum(vals, -1)
	case instr.Max:
		return extremum(vals, 1)
	default:
		return value.NullValue()
	}
}

func extremum(vals []value.Value, dir int) value.Value {
	if len(vals) == 0 {
		return value.NullValue()
	}
	best := vals[0]
	for _, v := range vals[1:] {
		if cmp, err := value.Compare(v, best); err == nil && cmp*dir > 0 {
			best = v
		}
	}
	return best
}

func (c *Context) execHaving(in *instr.Instruction) error {
	src := c.reg(in.Operands[0])
	w, _ := in.Operands[1].Raw.(*ast.WhereClause)
	rs := &RowSet{Columns: src.Columns}
	for _, row := range src.Rows {
		ok, err := evalWhere(w, row)
		if err != nil {
			return err
		}
		if ok {
			rs.Rows = append(rs.Rows, row)
		}
	}
	c.setReg(in.Result, rs)
	return nil
}

func (c *Context) execFilter(in *instr.Instruction) error {
	src := c.reg(in.Operands[0])
	w, _ := in.Operands[1].Raw.(*ast.WhereClause)
	rs := &RowSet{Columns: src.Columns}
	for _, row := range src.Rows {
		ok, err := evalWhere(w, row)
		if err != nil {
			return err
		}
		if ok {
			rs.Rows = append(rs.Rows, row)
		}
	}
	c.setReg(in.Result, rs)
	return nil
}

func evalWhere(w *ast.WhereClause, row Row) (bool, error) {
	if w == nil {
		return true, nil
	}
	if w.Leaf != nil {
		return evalCondition(w.Leaf, row)
	}
	left, err := evalWhere(w.Left, row)
	if err != nil {
		return false, err
	}
	right, err := evalWhere(w.Right, row)
	if err != nil {
		return false, err
	}
	if w.Op == ast.LogicOr {
		return left || right, nil
	}
	return left && right, nil
}

func evalCondition(cond *ast.Condition, row Row) (bool, error) {
	var lhs value.Value
	if cond.Aggregate != "" {
		lhs = row[strings.ToLower(cond.Aggregate)+"("+cond.AggColumn+")"]
	} else {
		lhs = lookupColumn(row, cond.Qualifier, cond.Column)
	}
	if lhs.IsNull() {
		return false, nil
	}
	coerced, err := value.CoerceTo(cond.Literal, lhs.Kind())
	if err != nil {
		coerced = cond.Literal
	}
	cmp, err := value.Compare(lhs, coerced)
	if err != nil {
		return false, errs.NewExecution(errs.RuntimeTypeMismatch, "%v", err)
	}
	switch cond.Op {
	case ast.OpEQ:
		return cmp == 0, nil
	case ast.OpNE:
		return cmp != 0, nil
	case ast.OpLT:
		return cmp < 0, nil
	case ast.OpLE:
		return cmp <= 0, nil
	case ast.OpGT:
		return cmp > 0, nil
	case ast.OpGE:
		return cmp >= 0, nil
	default:
		return false, nil
	}
}

func lookupColumn(row Row, qualifier, column string) value.Value {
	if qualifier != "" {
		if v, ok := row[qualifier+"."+column]; ok {
			return v
		}
	}
	if v, ok := row[column]; ok {
		return v
	}
	return value.NullValue()
}

func (c *Context) execProject(in *instr.Instruction) error {
	src := c.reg(in.Operands[0])
	items, _ := in.Operands[1].Raw.([]ast.SelectItem)
	rs := &RowSet{}
	for _, it := range items {
		if it.Star {
			rs.Columns = append(rs.Columns, src.Columns...)
		} else if it.Aggregate != nil {
			alias := it.Aggregate.Alias
			if alias == "" {
				alias = strings.ToLower(it.Aggregate.Func) + "(" + it.Aggregate.Column + ")"
			}
			rs.Columns = append(rs.Columns, alias)
		} else {
			name := it.Column
			if it.Alias != "" {
				name = it.Alias
			}
			rs.Columns = append(rs.Columns, name)
		}
	}
	for _, row := range src.Rows {
		out := Row{}
		for _, it := range items {
			if it.Star {
				for k, v := range row {
					if !strings.Contains(k, ".") {
						out[k] = v
					}
				}
			} else if it.Aggregate != nil {
				alias := it.Aggregate.Alias
				if alias == "" {
					alias = strings.ToLower(it.Aggregate.Func) + "(" + it.Aggregate.Column + ")"
				}
				out[alias] = row[strings.ToLower(it.Aggregate.Func)+"("+it.Aggregate.Column+")"]
			} else {
				name := it.Column
				if it.Alias != "" {
					out[it.Alias] = lookupColumn(row, it.Qualifier, it.Column)
				} else {
					out[name] = lookupColumn(row, it.Qualifier, it.Column)
				}
			}
		}
		rs.Rows = append(rs.Rows, out)
	}
	c.setReg(in.Result, rs)
	return nil
}

func (c *Context) execOrderBy(in *instr.Instruction) error {
	src := c.reg(in.Operands[0])
	ob, _ := in.Operands[1].Raw.(*ast.OrderByClause)
	rs := &RowSet{Columns: src.Columns, Rows: append([]Row{}, src.Rows...)}
	sort.SliceStable(rs.Rows, func(i, j int) bool {
		cmp, _ := value.Compare(rs.Rows[i][ob.Column], rs.Rows[j][ob.Column])
		if ob.Desc {
			return cmp > 0
		}
		return cmp < 0
	})
	c.setReg(in.Result, rs)
	return nil
}

func (c *Context) execLimit(in *instr.Instruction) error {
	src := c.reg(in.Operands[0])
	n := literalInt(in.Operands[1])
	rs := &RowSet{Columns: src.Columns}
	if n < 0 || int(n) >= len(src.Rows) {
		rs.Rows = src.Rows
	} else {
		rs.Rows = src.Rows[:n]
	}
	c.setReg(in.Result, rs)
	return nil
}

func (c *Context) execOffset(in *instr.Instruction) error {
	src := c.reg(in.Operands[0])
	n := literalInt(in.Operands[1])
	rs := &RowSet{Columns: src.Columns}
	if n >= int64(len(src.Rows)) {
		rs.Rows = nil
	} else {
		rs.Rows = src.Rows[n:]
	}
	c.setReg(in.Result, rs)
	return nil
}

func literalInt(o instr.Operand) int64 {
	switch v := o.Literal.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return -1
}

func (c *Context) execOutput(in *instr.Instruction) *Result {
	src := c.reg(in.Operands[0])
	if src == nil {
		return &Result{}
	}
	cleaned := make([]Row, len(src.Rows))
	for i, row := range src.Rows {
		out := Row{}
		for k, v := range row {
			if strings.Contains(k, ".") {
				continue
			}
			out[k] = v
		}
		cleaned[i] = out
	}
	return &Result{Columns: src.Columns, Rows: cleaned}
}

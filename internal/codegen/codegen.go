// Package codegen lowers a quad.List (C8's intermediate representation)
// into an instr.Program (C9's target instructions), grounded on
// original_source/src/compiler/codegen/translator.go's one-pass
// quad-to-instruction walk and the register-allocator idiom of
// other_examples' dynajoe-tinydb virtualmachine/codegen.go (monotonic
// registers, operands built from a small typed operand union rather
// than raw strings).
package codegen

import (
	"reldb/internal/errs"
	"reldb/internal/instr"
	"reldb/internal/quad"
)

// Generate lowers a quadruple program into a target instruction
// program. Each distinct temp name in the quad program ("T1", "T2", ...)
// is bound to its own register on first use; OUTPUT's "RESULT" gets none.
//
// A SELECT quad whose result feeds directly into the next JOIN quad
// never gets its own SCAN instruction: per spec.md §4.9 the join reads
// both of its tables itself, so the base table's scan is folded into
// the JOIN instruction's left operand instead of a separate register.
func Generate(quads quad.List) (*instr.Program, error) {
	prog := instr.NewProgram()
	regs := map[string]uint32{}
	foldedScan := map[string]string{} // select result temp -> table, for scans folded into a following join

	reg := func(temp string) instr.Operand {
		if r, ok := regs[temp]; ok {
			return instr.Reg(r)
		}
		r := prog.AllocReg()
		regs[temp] = r
		return instr.Reg(r)
	}

	for i, q := range quads {
		if q.Op == quad.Select {
			if table, ok := q.Arg2.(string); ok && joinConsumesResult(quads, i, q.Result.(string)) {
				foldedScan[q.Result.(string)] = table
				continue
			}
		}
		if err := generateOne(prog, q, reg, foldedScan); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

// joinConsumesResult reports whether the quadruple right after quads[i]
// is a JOIN whose left operand is temp, i.e. the SELECT at i exists only
// to hand its scanned table straight to that join.
func joinConsumesResult(quads quad.List, i int, temp string) bool {
	if i+1 >= len(quads) {
		return false
	}
	next := quads[i+1]
	if !isJoinOp(next.Op) {
		return false
	}
	left, _ := next.Arg1.(string)
	return left == temp
}

func isJoinOp(op quad.Op) bool {
	switch op {
	case quad.InnerJoin, quad.LeftJoin, quad.RightJoin, quad.FullJoin:
		return true
	default:
		return false
	}
}

func generateOne(prog *instr.Program, q quad.Quadruple, reg func(string) instr.Operand, foldedScan map[string]string) error {
	switch q.Op {
	case quad.Begin:
		prog.Emit(instr.Open)
	case quad.End:
		prog.Emit(instr.Close)
		prog.Emit(instr.Halt)

	case quad.Select:
		resultTemp := q.Result.(string)
		result := reg(resultTemp)
		cols, _ := q.Arg1.([]string)
		table, _ := q.Arg2.(string)
		prog.EmitTo(result, instr.Scan, instr.TableRef(table), instr.RawOperand(cols)).WithComment("scan " + table)

	case quad.InnerJoin, quad.LeftJoin, quad.RightJoin, quad.FullJoin:
		left := q.Arg1.(string)
		table, _ := q.Arg2.(string)
		resultTemp := q.Result.(string)
		op := joinInstr(q.Op)
		result := reg(resultTempOf(resultTemp))
		var leftOperand instr.Operand
		if srcTable, ok := foldedScan[left]; ok {
			leftOperand = instr.TableRef(srcTable)
		} else {
			leftOperand = reg(left)
		}
		prog.EmitTo(result, op, leftOperand, instr.TableRef(table), instr.RawOperand(resultTemp)).WithComment("join condition: " + resultTemp)

	case quad.Count, quad.Sum, quad.Avg, quad.Min, quad.Max:
		src := q.Arg1.(string)
		col, _ := q.Arg2.(string)
		result := reg(q.Result.(string))
		prog.EmitTo(result, aggInstr(q.Op), reg(src), instr.ColumnRef(col))

	case quad.GroupBy:
		src := q.Arg1.(string)
		cols, _ := q.Arg2.([]string)
		result := reg(q.Result.(string))
		prog.EmitTo(result, instr.GroupBy, reg(src), instr.RawOperand(cols))

	case quad.Having:
		src := q.Arg1.(string)
		result := reg(q.Result.(string))
		prog.EmitTo(result, instr.Having, reg(src), instr.RawOperand(q.Arg2))

	case quad.Filter:
		src := q.Arg1.(string)
		result := reg(q.Result.(string))
		prog.EmitTo(result, instr.Filter, reg(src), instr.RawOperand(q.Arg2))

	case quad.Project:
		src := q.Arg1.(string)
		result := reg(q.Result.(string))
		prog.EmitTo(result, instr.Project, reg(src), instr.RawOperand(q.Arg2))

	case quad.OrderBy:
		src := q.Arg1.(string)
		result := reg(q.Result.(string))
		prog.EmitTo(result, instr.OrderBy, reg(src), instr.RawOperand(q.Arg2))

	case quad.Limit:
		src := q.Arg1.(string)
		result := reg(q.Result.(string))
		prog.EmitTo(result, instr.Limit, reg(src), instr.Lit(q.Arg2))

	case quad.Offset:
		src := q.Arg1.(string)
		result := reg(q.Result.(string))
		prog.EmitTo(result, instr.Offset, reg(src), instr.Lit(q.Arg2))

	case quad.Output:
		src := q.Arg1.(string)
		prog.Emit(instr.Output, reg(src))

	case quad.CreateTable:
		table := q.Arg1.(string)
		prog.Emit("CREATE_TABLE", instr.TableRef(table), instr.RawOperand(q.Arg2))
	case quad.DropTable:
		table := q.Arg1.(string)
		prog.Emit("DROP_TABLE", instr.TableRef(table))
	case quad.AlterTableAdd:
		table := q.Arg1.(string)
		prog.Emit("ALTER_TABLE_ADD", instr.TableRef(table), instr.RawOperand(q.Arg2))
	case quad.CreateIndex:
		name := q.Arg1.(string)
		prog.Emit("CREATE_INDEX", instr.ColumnRef(name), instr.RawOperand(q.Arg2))
	case quad.Insert:
		table := q.Arg1.(string)
		prog.Emit("INSERT", instr.TableRef(table), instr.RawOperand(q.Arg2))
	case quad.Update:
		table := q.Arg1.(string)
		prog.Emit("UPDATE", instr.TableRef(table), instr.RawOperand(q.Arg2))
	case quad.Delete:
		table := q.Arg1.(string)
		prog.Emit("DELETE", instr.TableRef(table), instr.RawOperand(q.Arg2))

	default:
		return errs.NewExecution(errs.UnknownInstruction, "codegen: no lowering for quad op %q", q.Op)
	}
	return nil
}

// resultTempOf strips the embedded join-condition suffix AnalyzeSelect
// packs into a JOIN quadruple's Result field ("T2|u.id=c.student_id")
// back down to the bare temp name ("T2") for register binding.
func resultTempOf(result string) string {
	for i := 0; i < len(result); i++ {
		if result[i] == '|' {
			return result[:i]
		}
	}
	return result
}

func joinInstr(op quad.Op) instr.Op {
	switch op {
	case quad.LeftJoin:
		return instr.LeftJoin
	case quad.RightJoin:
		return instr.RightJoin
	case quad.FullJoin:
		return instr.FullJoin
	default:
		return instr.InnerJoin
	}
}

func aggInstr(op quad.Op) instr.Op {
	switch op {
	case quad.Sum:
		return instr.Sum
	case quad.Avg:
		return instr.Avg
	case quad.Min:
		return instr.Min
	case quad.Max:
		return instr.Max
	default:
		return instr.Count
	}
}

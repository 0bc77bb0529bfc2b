// Package value implements the tagged runtime value type records and
// expressions carry: Integer, Float, String, Boolean, or Null. Every
// comparison and type coercion in the engine goes through this package
// rather than through raw Go interface{} switches.
package value

import (
	"fmt"
	"strconv"
)

// Kind is the closed set of runtime value types.
type Kind int

const (
	Null Kind = iota
	Integer
	Float
	String
	Boolean
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "NULL"
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case String:
		return "STRING"
	case Boolean:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// Value is an immutable tagged union. Zero value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

func NullValue() Value            { return Value{kind: Null} }
func Int(i int64) Value           { return Value{kind: Integer, i: i} }
func Flt(f float64) Value         { return Value{kind: Float, f: f} }
func Str(s string) Value          { return Value{kind: String, s: s} }
func Bool(b bool) Value           { return Value{kind: Boolean, b: b} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == Null }
func (v Value) Int() int64    { return v.i }
func (v Value) Float() float64 {
	if v.kind == Integer {
		return float64(v.i)
	}
	return v.f
}
func (v Value) Text() string { return v.s }
func (v Value) Bool() bool   { return v.b }

// String renders the value the way the front door echoes literals back
// to callers (debuggability at module boundaries, per spec.md §3/§9).
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "NULL"
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case String:
		return v.s
	case Boolean:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return "?"
	}
}

// Equal implements value equality used by Record round-trip checks and
// by the table manager's unique-key checks (the B+tree orders and
// matches keys with Compare instead). Null is never equal to
// anything, including another Null, matching SQL's NULL semantics.
func Equal(a, b Value) bool {
	if a.kind == Null || b.kind == Null {
		return false
	}
	if a.kind != b.kind {
		// INTEGER/FLOAT compare numerically; everything else must match kind.
		if isNumeric(a.kind) && isNumeric(b.kind) {
			return a.Float() == b.Float()
		}
		return false
	}
	switch a.kind {
	case Integer:
		return a.i == b.i
	case Float:
		return a.f == b.f
	case String:
		return a.s == b.s
	case Boolean:
		return a.b == b.b
	default:
		return false
	}
}

func isNumeric(k Kind) bool { return k == Integer || k == Float }

// Compare orders two values for ORDER BY and B+tree key comparison.
// Returns -1, 0, 1. Null sorts as if it were the numeric zero / empty
// string, per spec.md §4.10's ORDER_BY contract ("nulls sort as if
// zero").
func Compare(a, b Value) (int, error) {
	if a.kind == Null {
		a = zeroLike(b.kind)
	}
	if b.kind == Null {
		b = zeroLike(a.kind)
	}
	switch {
	case isNumeric(a.kind) && isNumeric(b.kind):
		af, bf := a.Float(), b.Float()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	case a.kind == String && b.kind == String:
		switch {
		case a.s < b.s:
			return -1, nil
		case a.s > b.s:
			return 1, nil
		default:
			return 0, nil
		}
	case a.kind == Boolean && b.kind == Boolean:
		if a.b == b.b {
			return 0, nil
		}
		if !a.b && b.b {
			return -1, nil
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("cannot compare %s with %s", a.kind, b.kind)
	}
}

func zeroLike(k Kind) Value {
	switch k {
	case Integer:
		return Int(0)
	case Float:
		return Flt(0)
	case String:
		return Str("")
	case Boolean:
		return Bool(false)
	default:
		return Int(0)
	}
}

// CoerceTo attempts to convert a literal value into the given column
// kind, the way a constant assigned to a typed column would be coerced.
// It returns an error describing the mismatch rather than silently
// truncating.
func CoerceTo(v Value, k Kind) (Value, error) {
	if v.kind == Null {
		return v, nil
	}
	if v.kind == k {
		return v, nil
	}
	switch k {
	case Float:
		if v.kind == Integer {
			return Flt(float64(v.i)), nil
		}
	case Integer:
		if v.kind == Float && v.f == float64(int64(v.f)) {
			return Int(int64(v.f)), nil
		}
	}
	return Value{}, fmt.Errorf("type mismatch: cannot use %s value as %s", v.kind, k)
}

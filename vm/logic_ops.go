package vm

import "fmt"

// execLogicOp dispatches LT..NOT. Grounded on
// original_source/tools/vm.py's _handle_logic.
//
// Comparisons and AND/OR always produce FLOAT (1.0/0.0). The original
// Python source tags AND/OR's result FLOAT too but stores whichever raw operand
// "won" as the payload (Python's `and`/`or` return an operand, not a
// bool); since that operand is frequently not itself a float, reproducing
// it would break this Value's FLOAT accessor on the very next LOAD/STORE.
// Not reproduced: AND/OR here reduce straight to a boolean computed from
// Truthy(), same as every other opcode in this group. See DESIGN.md.
func (m *VM) execLogicOp(op Opcode) error {
	if op == Not {
		return m.execNot()
	}

	b, err := m.stack.Pop()
	if err != nil {
		return err
	}
	a, err := m.stack.Pop()
	if err != nil {
		return err
	}

	var result bool
	switch op {
	case Lt:
		result, err = compareValues(a, b, func(c int) bool { return c < 0 })
	case Gt:
		result, err = compareValues(a, b, func(c int) bool { return c > 0 })
	case Eq:
		result = valuesEqual(a, b)
	case Neq:
		result = !valuesEqual(a, b)
	case Leq:
		result, err = compareValues(a, b, func(c int) bool { return c <= 0 })
	case Geq:
		result, err = compareValues(a, b, func(c int) bool { return c >= 0 })
	case And:
		result = a.Truthy() && b.Truthy()
	case Or:
		result = a.Truthy() || b.Truthy()
	default:
		return fmt.Errorf("%w: 0x%02x in logic group", ErrInvalidOpcode, byte(op))
	}
	if err != nil {
		return err
	}

	out := boolFloat(result)
	m.stack.Push(out)
	m.trace(op, nil, []Value{b, a}, []Value{out})
	return nil
}

func (m *VM) execNot() error {
	v, err := m.stack.Pop()
	if err != nil {
		return err
	}

	negated := !v.Truthy()
	var result Value
	switch v.Type() {
	case Int:
		result = IntValue(boolInt(negated))
	case Float:
		result = FloatValue(boolFloat32(negated))
	case Undef:
		result = UndefValue()
	default:
		return fmt.Errorf("%w: NOT on %s", ErrTypeMismatch, v.Type())
	}

	m.stack.Push(result)
	m.trace(Not, nil, []Value{v}, []Value{result})
	return nil
}

func boolFloat(b bool) Value {
	return FloatValue(boolFloat32(b))
}

func boolFloat32(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// valuesEqual is like Python's universal `==` in that values of unrelated
// types compare unequal rather than raising, unlike every ordered
// comparison. Only numbers, strings and references are compared by
// content; any other pair, even of the same type (two UNDEFs included),
// compares unequal.
func valuesEqual(a, b Value) bool {
	switch {
	case isNumeric(a) && isNumeric(b):
		return asFloat(a) == asFloat(b)
	case a.Type() == Str && b.Type() == Str:
		as, _ := a.Str()
		bs, _ := b.Str()
		return as == bs
	case a.Type() == Ref && b.Type() == Ref:
		ar, _ := a.Reference()
		br, _ := b.Reference()
		return referencesEqual(ar, br)
	case a.Type() != b.Type():
		return false
	default:
		return false
	}
}

// compareValues orders two Values of the same comparable kind (both
// numeric, both STR) and hands the three-way result to pick, which
// implements the specific comparison operator.
func compareValues(a, b Value, pick func(int) bool) (bool, error) {
	switch {
	case isNumeric(a) && isNumeric(b):
		af, bf := asFloat(a), asFloat(b)
		switch {
		case af < bf:
			return pick(-1), nil
		case af > bf:
			return pick(1), nil
		default:
			return pick(0), nil
		}
	case a.Type() == Str && b.Type() == Str:
		as, _ := a.Str()
		bs, _ := b.Str()
		switch {
		case as < bs:
			return pick(-1), nil
		case as > bs:
			return pick(1), nil
		default:
			return pick(0), nil
		}
	default:
		return false, fmt.Errorf("%w: comparison between %s and %s", ErrTypeMismatch, a.Type(), b.Type())
	}
}

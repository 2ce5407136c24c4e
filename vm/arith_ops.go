package vm

import (
	"fmt"
	"math"
)

// execArithOp dispatches ADD..NEG. Grounded on
// original_source/tools/vm.py's _handle_math.
func (m *VM) execArithOp(op Opcode) error {
	if op == Neg {
		return m.execNeg()
	}

	b, err := m.stack.Pop()
	if err != nil {
		return err
	}
	a, err := m.stack.Pop()
	if err != nil {
		return err
	}

	var result Value
	switch op {
	case Add:
		result, err = addValues(a, b)
	case Sub:
		result, err = numericBinary(a, b, func(x, y int32) int32 { return x - y }, func(x, y float32) float32 { return x - y })
	case Mul:
		result, err = numericBinary(a, b, func(x, y int32) int32 { return x * y }, func(x, y float32) float32 { return x * y })
	case Div:
		result, err = divValues(a, b)
	case Mod:
		result, err = modValues(a, b)
	default:
		return fmt.Errorf("%w: 0x%02x in arith group", ErrInvalidOpcode, byte(op))
	}
	if err != nil {
		return err
	}

	m.stack.Push(result)
	m.trace(op, nil, []Value{b, a}, []Value{result})
	return nil
}

func (m *VM) execNeg() error {
	v, err := m.stack.Pop()
	if err != nil {
		return err
	}

	var result Value
	switch v.Type() {
	case Int:
		i, _ := v.Int()
		result = IntValue(-i)
	case Float:
		f, _ := v.Float()
		result = FloatValue(-f)
	default:
		return fmt.Errorf("%w: NEG on %s", ErrTypeMismatch, v.Type())
	}

	m.stack.Push(result)
	m.trace(Neg, nil, []Value{v}, []Value{result})
	return nil
}

// addValues implements ADD, the one binary operator whose result kind may
// widen all the way to STR or REF: string concatenation, reference + int,
// reference + reference, or numeric addition with INT/FLOAT widening.
func addValues(a, b Value) (Value, error) {
	switch {
	case a.Type() == Str && b.Type() == Str:
		as, _ := a.Str()
		bs, _ := b.Str()
		return StrValue(as + bs), nil
	case a.Type() == Ref && b.Type() == Ref:
		ar, _ := a.Reference()
		br, _ := b.Reference()
		r, err := ar.AddRef(br)
		if err != nil {
			return Value{}, err
		}
		return RefValue(r), nil
	case a.Type() == Ref && b.Type() == Int:
		ar, _ := a.Reference()
		bi, _ := b.Int()
		r, err := ar.AddInt(bi)
		if err != nil {
			return Value{}, err
		}
		return RefValue(r), nil
	case isNumeric(a) && isNumeric(b):
		return numericBinary(a, b, func(x, y int32) int32 { return x + y }, func(x, y float32) float32 { return x + y })
	default:
		return Value{}, fmt.Errorf("%w: ADD on %s and %s", ErrTypeMismatch, a.Type(), b.Type())
	}
}

func isNumeric(v Value) bool {
	return v.Type() == Int || v.Type() == Float
}

// numericBinary applies intOp when both operands are INT, and widens to
// FLOAT (applying floatOp) otherwise: mixed INT+FLOAT follows conventional
// numeric widening to FLOAT.
func numericBinary(a, b Value, intOp func(int32, int32) int32, floatOp func(float32, float32) float32) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, fmt.Errorf("%w: arithmetic on %s and %s", ErrTypeMismatch, a.Type(), b.Type())
	}
	if a.Type() == Int && b.Type() == Int {
		ai, _ := a.Int()
		bi, _ := b.Int()
		return IntValue(intOp(ai, bi)), nil
	}
	af, bf := asFloat(a), asFloat(b)
	return FloatValue(floatOp(af, bf)), nil
}

func asFloat(v Value) float32 {
	if v.Type() == Int {
		i, _ := v.Int()
		return float32(i)
	}
	f, _ := v.Float()
	return f
}

// divValues always produces FLOAT, matching original_source/tools/vm.py's
// use of Python's true division (`/`) even when both operands are INT.
func divValues(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, fmt.Errorf("%w: DIV on %s and %s", ErrTypeMismatch, a.Type(), b.Type())
	}
	bf := asFloat(b)
	if bf == 0 {
		return Value{}, fmt.Errorf("%w: division by zero", ErrArithmeticError)
	}
	return FloatValue(asFloat(a) / bf), nil
}

// modValues keeps INT%INT as INT (floor-mod, matching Python's `%`) and
// widens to FLOAT otherwise.
func modValues(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, fmt.Errorf("%w: MOD on %s and %s", ErrTypeMismatch, a.Type(), b.Type())
	}
	if a.Type() == Int && b.Type() == Int {
		ai, _ := a.Int()
		bi, _ := b.Int()
		if bi == 0 {
			return Value{}, fmt.Errorf("%w: modulo by zero", ErrArithmeticError)
		}
		r := ai % bi
		if r != 0 && (r < 0) != (bi < 0) {
			r += bi
		}
		return IntValue(r), nil
	}
	af, bf := asFloat(a), asFloat(b)
	if bf == 0 {
		return Value{}, fmt.Errorf("%w: modulo by zero", ErrArithmeticError)
	}
	r := float32(math.Mod(float64(af), float64(bf)))
	if r != 0 && (r < 0) != (bf < 0) {
		r += bf
	}
	return FloatValue(r), nil
}

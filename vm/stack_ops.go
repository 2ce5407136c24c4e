package vm

import (
	"fmt"

	"go.uber.org/zap"
)

// execStackOp dispatches the PUSH_*/TAKE/SWAP/POP handler group.
// Grounded on original_source/tools/vm.py's _handle_stack.
func (m *VM) execStackOp(op Opcode) error {
	switch op {
	case PushFloat:
		return m.execPushFloat()
	case PushStr:
		return m.execPushStr()
	case PushInt:
		return m.execPushInt()
	case PushFn:
		return m.execPushFn()
	case Take:
		return m.execTake()
	case Swap:
		return m.execSwap()
	case Pop:
		return m.execPop()
	default:
		return fmt.Errorf("%w: 0x%02x in stack group", ErrInvalidOpcode, byte(op))
	}
}

func (m *VM) execPushFloat() error {
	v, offset, err := m.r.f32(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset
	val := FloatValue(v)
	m.stack.Push(val)
	m.trace(PushFloat, nil, nil, []Value{val})
	return nil
}

func (m *VM) execPushStr() error {
	v, offset, err := m.r.str(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset
	val := StrValue(v)
	m.stack.Push(val)
	m.trace(PushStr, nil, nil, []Value{val})
	return nil
}

func (m *VM) execPushInt() error {
	v, offset, err := m.r.u32(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset
	val := IntValue(v)
	m.stack.Push(val)
	m.trace(PushInt, nil, nil, []Value{val})
	return nil
}

// execPushFn implements the closure-capture opcode: capture fr_count
// environment values starting fr_offset+1 below the top, pop the
// function's start address, and push a new FN value.
func (m *VM) execPushFn() error {
	frCount, offset, err := m.r.u32(m.offset)
	if err != nil {
		return err
	}
	frOffset, offset, err := m.r.u32(offset)
	if err != nil {
		return err
	}
	frSize, offset, err := m.r.u32(offset)
	if err != nil {
		return err
	}
	m.offset = offset

	frames, err := m.stack.CaptureEnvFrames(frOffset, frCount)
	if err != nil {
		return err
	}

	addr, err := m.stack.Pop()
	if err != nil {
		return err
	}
	start, err := addr.Int()
	if err != nil {
		return err
	}

	fn := FnValue(Function{Start: start, EnvFrames: frames, FrameSize: frSize})
	m.stack.Push(fn)
	m.trace(PushFn, []zap.Field{
		zap.Int32("fr_count", frCount),
		zap.Int32("fr_offset", frOffset),
		zap.Int32("fr_size", frSize),
	}, []Value{addr}, []Value{fn})
	return nil
}

func (m *VM) execTake() error {
	k, offset, err := m.r.u32(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset

	v, err := m.stack.Peek(int(k))
	if err != nil {
		return err
	}
	m.stack.Push(v)
	m.trace(Take, []zap.Field{zap.Int32("k", k)}, nil, []Value{v})
	return nil
}

func (m *VM) execSwap() error {
	a, offset, err := m.r.u32(m.offset)
	if err != nil {
		return err
	}
	b, offset, err := m.r.u32(offset)
	if err != nil {
		return err
	}
	m.offset = offset

	if err := m.stack.SwapAt(int(a), int(b)); err != nil {
		return err
	}
	m.trace(Swap, []zap.Field{zap.Int32("a", a), zap.Int32("b", b)}, nil, nil)
	return nil
}

func (m *VM) execPop() error {
	n, offset, err := m.r.u32(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset

	if _, err := m.stack.PopN(n); err != nil {
		return err
	}
	m.trace(Pop, []zap.Field{zap.Int32("n", n)}, nil, nil)
	return nil
}

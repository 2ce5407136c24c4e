package vm

import (
	"fmt"

	"go.uber.org/zap"
)

// execControlOp dispatches JUMPIF/JUMP/CALL. Grounded on
// original_source/tools/vm.py's _handle_control.
func (m *VM) execControlOp(op Opcode) error {
	switch op {
	case JumpIf:
		return m.execJumpIf()
	case Jump:
		return m.execJump()
	case Call:
		return m.execCall()
	default:
		return fmt.Errorf("%w: 0x%02x in control group", ErrInvalidOpcode, byte(op))
	}
}

func (m *VM) execJumpIf() error {
	addr, err := m.stack.Pop()
	if err != nil {
		return err
	}
	cond, err := m.stack.Pop()
	if err != nil {
		return err
	}

	taken := cond.Truthy()
	if taken {
		target, err := addr.Int()
		if err != nil {
			return err
		}
		m.offset = target
	}

	m.trace(JumpIf, nil, []Value{cond, addr}, nil)
	return nil
}

func (m *VM) execJump() error {
	addr, err := m.stack.Pop()
	if err != nil {
		return err
	}
	target, err := addr.Int()
	if err != nil {
		return err
	}
	m.offset = target
	m.trace(Jump, nil, []Value{addr}, nil)
	return nil
}

// execCall implements both calling conventions CALL shares under one
// opcode: a synchronous, return-value-less NATIVE invocation, or a
// scripted call that allocates a heap frame, binds positional arguments,
// writes the receiver slot, and replays the captured environment onto the
// operand stack.
func (m *VM) execCall() error {
	fnRef, err := m.stack.Pop()
	if err != nil {
		return err
	}
	nArgsVal, err := m.stack.Pop()
	if err != nil {
		return err
	}
	nArgs, err := nArgsVal.Int()
	if err != nil {
		return err
	}

	var callee Value
	var calleeBase *int32
	if fnRef.Type() == Ref {
		r, _ := fnRef.Reference()
		if r.TargetPtr == nil {
			return fmt.Errorf("%w: CALL through a dangling reference", ErrTypeMismatch)
		}
		callee, err = m.heap.Get(*r.TargetPtr)
		if err != nil {
			return err
		}
		calleeBase = r.BasePtr
	} else {
		callee = fnRef
	}

	args, err := m.stack.PopN(nArgs)
	if err != nil {
		return err
	}

	switch callee.Type() {
	case Native:
		return m.callNative(callee, args)
	case Fn:
		return m.callScripted(callee, calleeBase, nArgs, args)
	default:
		return fmt.Errorf("%w: CALL on %s", ErrTypeMismatch, callee.Type())
	}
}

// callNative invokes a host callable with unwrapped payload arguments.
// The caller's prologue is expected to have pushed a return address below
// the arguments; after the call returns, that address is popped and the
// program counter jumps to it, and UNDEF is pushed as the call's
// (non-)result. Grounded on original_source/tools/vm.py lines 346-352.
func (m *VM) callNative(callee Value, args []Value) error {
	fn, err := callee.Native()
	if err != nil {
		return err
	}

	payloads := make([]any, len(args))
	for i, a := range args {
		payloads[i] = a.RawPayload()
	}
	fn(payloads)

	retAddr, err := m.stack.Pop()
	if err != nil {
		return err
	}
	ip, err := retAddr.Int()
	if err != nil {
		return err
	}
	m.offset = ip
	m.stack.Push(UndefValue())

	m.trace(Call, nil, args, nil)
	return nil
}

// callScripted allocates a new frame, binds arguments and the receiver,
// pushes the local-environment reference and captured closure values, and
// transfers control to the function's entry point.
func (m *VM) callScripted(callee Value, calleeBase *int32, nArgs int32, args []Value) error {
	fn, err := callee.Function()
	if err != nil {
		return err
	}

	// args is in push order (oldest/deepest first, vm/stack.go's PopN); the
	// binding loop below walks it in pop order (topmost/most-recent first)
	// so slot 0 gets the first-popped argument, per spec §4.5 and
	// original_source/tools/vm.py:357-360.
	frameStart := m.heap.AllocN(fn.FrameSize)
	for i := range args {
		if err := m.heap.Set(frameStart+int32(i), args[len(args)-1-i]); err != nil {
			return err
		}
	}

	receiver := Reference{TargetPtr: calleeBase}
	if err := m.heap.Set(frameStart+nArgs, RefValue(receiver)); err != nil {
		return err
	}

	m.stack.Push(RefValue(RootlessReference(frameStart)))
	for _, envVal := range fn.EnvFrames {
		m.stack.Push(envVal)
	}
	m.offset = fn.Start

	m.trace(Call, nil, args, nil)
	return nil
}

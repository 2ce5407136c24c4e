package vm

import (
	"fmt"

	"go.uber.org/zap"
)

// execMemOp dispatches LOAD/STORE. Grounded on
// original_source/tools/vm.py's _handle_mem.
func (m *VM) execMemOp(op Opcode) error {
	switch op {
	case Load:
		return m.execLoad()
	case Store:
		return m.execStore()
	default:
		return fmt.Errorf("%w: 0x%02x in mem group", ErrInvalidOpcode, byte(op))
	}
}

// execLoad peeks the top address, dereferences it (adding the inline
// offset k), and replaces the top with the loaded heap cell. A REF
// dereferences through its target_ptr; a raw INT is treated as a bare
// heap index — the two addressing modes LOAD supports.
func (m *VM) execLoad() error {
	k, offset, err := m.r.u32(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset

	addr, err := m.stack.Peek(0)
	if err != nil {
		return err
	}

	var idx int32
	switch addr.Type() {
	case Ref:
		r, _ := addr.Reference()
		if r.TargetPtr == nil {
			return fmt.Errorf("%w: LOAD on dangling reference", ErrTypeMismatch)
		}
		idx = *r.TargetPtr + k
	case Int:
		base, _ := addr.Int()
		idx = base + k
	default:
		return fmt.Errorf("%w: LOAD on %s", ErrTypeMismatch, addr.Type())
	}

	value, err := m.heap.Get(idx)
	if err != nil {
		return err
	}
	if err := m.stack.ReplaceTop(value); err != nil {
		return err
	}
	m.trace(Load, []zap.Field{zap.Int32("k", k)}, []Value{addr}, []Value{value})
	return nil
}

// execStore implements the lazy-slot materialisation rule: a dangling
// reference appends a fresh heap cell and installs a REF entry into its
// container; a bound reference overwrites in place.
func (m *VM) execStore() error {
	addr, err := m.stack.Pop()
	if err != nil {
		return err
	}
	value, err := m.stack.Pop()
	if err != nil {
		return err
	}

	ref, err := addr.Reference()
	if err != nil {
		return err
	}

	if ref.IsDangling() {
		if !ref.HasBase() {
			return fmt.Errorf("%w: STORE on a dangling reference with no container", ErrTypeMismatch)
		}
		newIdx := m.heap.Alloc(value)

		containerVal, err := m.heap.Get(*ref.BasePtr)
		if err != nil {
			return err
		}
		dict, err := containerVal.DictObject()
		if err != nil {
			return err
		}
		dict.Set(ref.TargetName, RefValue(Reference{
			BasePtr:    ref.BasePtr,
			TargetName: ref.TargetName,
			TargetPtr:  intPtr(newIdx),
		}))
	} else {
		if err := m.heap.Set(*ref.TargetPtr, value); err != nil {
			return err
		}
	}

	m.trace(Store, nil, []Value{value, addr}, nil)
	return nil
}

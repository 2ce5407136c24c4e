// Package vm implements the stack-based bytecode virtual machine: the
// tagged value model, the heap/stack memory model, the calling
// convention, and the little-endian instruction decoder. Grounded
// throughout on KTStephano/gvm's vm package (its Step/dispatch shape,
// its bytecode-grouping predicates, its sentinel error taxonomy) and on
// original_source/tools/vm.py, the Python reference implementation this
// instruction set and memory model were distilled from.
package vm

import (
	"fmt"
	"runtime/debug"
)

// VM is a single, synchronous, single-threaded execution of one bytecode
// image: no suspension points, no re-entrancy except through CALL's
// frame-extending convention. Heap and Stack are owned exclusively by
// this instance and never aliased with another.
type VM struct {
	image []byte
	r     *reader

	heap  *Heap
	stack *Stack

	offset int32 // byte index into image; the execution cursor
	ip     int32 // human-readable instruction count, debug only

	offsetAtFetch int32 // offset at the start of the instruction currently tracing
	debug         bool
}

// NewVM constructs a VM over image, bootstrapping the heap with the
// built-in tree before any instruction executes. Pass a nil or empty
// builtins tree to run with no host namespace at all (heap slot 1 will
// simply be an empty dictionary).
func NewVM(image []byte, builtins BuiltinTree, debugTrace bool) (*VM, error) {
	h := NewHeap()
	if err := Bootstrap(h, builtins); err != nil {
		return nil, fmt.Errorf("bootstrap built-ins: %w", err)
	}

	return &VM{
		image: image,
		r:     newReader(image),
		heap:  h,
		stack: NewStack(),
		debug: debugTrace,
	}, nil
}

func (m *VM) Heap() *Heap   { return m.heap }
func (m *VM) Stack() *Stack { return m.stack }
func (m *VM) Offset() int32 { return m.offset }
func (m *VM) IP() int32     { return m.ip }

// Step decodes and executes exactly one opcode, the sole fetch-decode-
// execute primitive Run and RunSteps both drive. It is a no-op once the
// cursor has reached the end of the image.
func (m *VM) Step() error {
	if m.offset >= int32(len(m.image)) {
		return nil
	}

	m.offsetAtFetch = m.offset
	op, offset, err := m.r.opcode(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset
	m.ip++

	switch {
	case op.IsStackOp():
		err = m.execStackOp(op)
	case op.IsMemOp():
		err = m.execMemOp(op)
	case op.IsControlOp():
		err = m.execControlOp(op)
	case op.IsArithOp():
		err = m.execArithOp(op)
	case op.IsLogicOp():
		err = m.execLogicOp(op)
	case op.IsAggregateOp():
		err = m.execAggregateOp(op)
	default:
		err = fmt.Errorf("%w: 0x%02x at offset %d", ErrInvalidOpcode, byte(op), m.offsetAtFetch)
	}
	return err
}

// Run drives Step to completion: the cursor reaching the end of the
// image, or any handler returning a fatal error. Every error halts the
// run; there is no in-bytecode recovery. The heap only ever grows for the
// run's whole duration, so no GC is needed mid-run; matching the
// teacher's run.go trick of disabling the collector for the hot loop, Run
// suspends it for its own duration and restores the prior setting on
// return.
func (m *VM) Run() error {
	prevGC := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prevGC)

	for m.offset < int32(len(m.image)) {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunSteps executes at most n opcodes, stopping early if the image ends
// first. Useful for an interactive stepper's "skip N" command and for
// tests driving a handful of opcodes at a time.
func (m *VM) RunSteps(n int) error {
	for i := 0; i < n && m.offset < int32(len(m.image)); i++ {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

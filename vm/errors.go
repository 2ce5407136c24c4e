package vm

import (
	"errors"
	"fmt"
)

// Sentinel error classes. Every fatal condition the VM can raise wraps
// exactly one of these so an embedder can classify a halted run with
// errors.Is, the same way KTStephano/gvm's bare sentinel errors
// (errProgramFinished, errSegmentationFault, ...) let its CLI print a
// specific message without a type switch.
var (
	ErrInvalidOpcode   = errors.New("invalid opcode")
	ErrUnderflow       = errors.New("stack underflow")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrArithmeticError = errors.New("arithmetic error")
	ErrOutOfRange      = errors.New("heap index out of range")
	ErrDecodeError     = errors.New("image ends mid-immediate")
)

// ErrDanglingArithmetic is raised by Reference arithmetic against a
// dangling reference. It is a TypeMismatch: a dangling reference has no
// target_ptr to offset.
var ErrDanglingArithmetic = fmt.Errorf("%w: dangling reference has no target_ptr", ErrTypeMismatch)

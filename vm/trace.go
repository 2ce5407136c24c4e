package vm

import "go.uber.org/zap"

// trace emits one structured Debug record per opcode when the VM was
// constructed with debug tracing on; whether the record is written
// anywhere is up to the package logger (see logger.go). Grounded on the
// teacher's printCurrentState/debugOut trace (the string it built per
// instruction from the old vm/vm.go) and on original_source/tools/vm.py's
// _print_cmd, which assembled the same "name (direct) [stack] => result"
// shape as a formatted string; here the fields are structured zap fields
// instead of interpolated text so an embedder can route them anywhere.
func (m *VM) trace(op Opcode, direct []zap.Field, stackArgs []Value, result []Value) {
	if !m.debug {
		return
	}
	fields := append([]zap.Field{
		zap.Int32("ip", m.ip),
		zap.Int32("offset", m.offsetAtFetch),
	}, direct...)

	if len(stackArgs) > 0 {
		fields = append(fields, zap.Stringers("operands", stackArgs))
	}
	if len(result) > 0 {
		fields = append(fields, zap.Stringers("result", result))
	}

	Logger().Debug(op.String(), fields...)
}

package vm

import "fmt"

// Function is the descriptor captured by PUSH_FN: where the body starts,
// the lexical environment values captured at closure-creation time, and
// how many heap slots a call frame needs.
type Function struct {
	Start     int32
	EnvFrames []Value
	FrameSize int32
}

func (f Function) String() string {
	return fmt.Sprintf("fn@%d (env=%d fr=%d)", f.Start, len(f.EnvFrames), f.FrameSize)
}

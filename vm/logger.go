package vm

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package's trace logger. It defaults to a no-op sink
// so a VM built without debug tracing pays nothing beyond a branch per
// opcode. Grounded on wippyai-wasm-runtime/engine.Logger's
// sync.Once-guarded package singleton.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the package trace logger. The per-opcode trace
// (see trace.go) is only emitted by a VM constructed with debug tracing
// on; a logger built with a Debug-enabled core makes those records visible.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	logger = l
}

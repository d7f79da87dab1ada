// SPDX-License-Identifier: GPL-3.0

// Package telemetry wires a shared zap logger for the simulator, so every
// component logs with structured fields instead of calling the standard
// library's log package directly.
package telemetry

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// L returns the process-wide logger.
func L() *zap.Logger {
	return logger.Load()
}

// SetLogger installs l as the process-wide logger. cmd/l4ssim calls this
// at start-up after parsing the configured log level, and again in its run
// command to tag the logger with the run ID.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

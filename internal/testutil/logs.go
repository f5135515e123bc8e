package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alisaviation/mqtt-bridge/internal/logger"
)

// ObserveLogs swaps the global logger for an observer capturing every level and
// restores the previous logger when the test finishes.
func ObserveLogs(t testing.TB) *observer.ObservedLogs {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	return logs
}

// CountLevel returns how many captured entries were logged at lvl.
func CountLevel(logs *observer.ObservedLogs, lvl zapcore.Level) int {
	n := 0
	for _, e := range logs.All() {
		if e.Level == lvl {
			n++
		}
	}
	return n
}

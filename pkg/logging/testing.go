package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObserved returns a logger that records every entry at debug level and
// above, for assertions in tests.
func NewObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)
	return zap.New(core), observed
}

// AssertLogged fails tb unless an entry with the given level and message was recorded.
func AssertLogged(tb testing.TB, logs *observer.ObservedLogs, level zapcore.Level, msg string) {
	tb.Helper()
	for _, entry := range logs.FilterMessage(msg).All() {
		if entry.Level == level {
			return
		}
	}
	tb.Errorf("expected %v log %q, got %+v", level, msg, logs.All())
}

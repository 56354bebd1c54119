package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.With("component", "engine").Info("generated form", "caseId", "case-1", "fields", 3)
	l.Warn("cache miss")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "generated form", entries[0].Message)
		fields := entries[0].ContextMap()
		assert.Equal(t, "engine", fields["component"])
		assert.Equal(t, "case-1", fields["caseId"])
		assert.EqualValues(t, 3, fields["fields"])
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	l := NewLogger("warn", "json")
	assert.False(t, l.s.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.s.Desugar().Core().Enabled(zapcore.WarnLevel))

	dev := NewLogger("debug", "console")
	assert.True(t, dev.s.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNopDiscards(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() { l.Error("ignored", "k", "v") })
}

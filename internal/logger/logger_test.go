package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAnonymize(t *testing.T) {
	in := "login alice@example.com cookie=eyJhbGciOiJIUzI1NiJ9.e30.sig /admin/seed?token=s3cret&users=5"
	out := Anonymize(in)

	assert.NotContains(t, out, "alice@example.com")
	assert.NotContains(t, out, "eyJhbGci")
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "[REDACTED_EMAIL]")
	assert.Contains(t, out, "token=[REDACTED_TOKEN]")
	assert.Contains(t, out, "users=5")
}

func TestLoggerWritesModuleAndError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	UseCore(core)
	t.Cleanup(func() { UseCore(zapcore.NewNopCore()) })

	l := New()
	l.Info("feed", "timeline served")
	l.Error("store", "query failed for bob@example.com", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "timeline served", entries[0].Message)
	assert.Equal(t, "feed", entries[0].ContextMap()["module"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "query failed for [REDACTED_EMAIL]", entries[1].Message)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	require.Error(t, Init("loud", ""))
}

package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
)

func newObservedLogger(t *testing.T) (*RollbarLogger, *observer.ObservedLogs) {
	t.Helper()
	obsCore, logs := observer.New(zapcore.DebugLevel)
	l := NewRollbarLogger(zap.New(obsCore).Sugar(), &core.Config{Env: "TEST", Build: "test"})
	l.Enable(false)
	return l, logs
}

func TestRollbarLogger_fields(t *testing.T) {
	l, logs := newObservedLogger(t)

	acc := account.Account{ID: 7, Username: "alice"}
	l.Error("enroll failed", errors.New("boom"), map[string]interface{}{"course_id": int64(3)}, acc)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "enroll failed", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, int64(3), ctx["course_id"])
	assert.Equal(t, "alice", ctx["account"])
}

func TestRollbarLogger_levels(t *testing.T) {
	l, logs := newObservedLogger(t)

	l.Debug("d")
	l.Info("i")
	l.Warn("w", "raw")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "raw", entries[2].ContextMap()["extra"])
}

func TestRollbarLogger_prepare(t *testing.T) {
	l, _ := newObservedLogger(t)

	args := l.prepare("msg", []interface{}{account.Account{ID: 1}, "x", account.Account{ID: 2}})
	assert.Equal(t, []interface{}{"msg", "x"}, args)
}

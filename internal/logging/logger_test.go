package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level LogLevel, maxHist int) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(&Config{
		LogDir:     t.TempDir(),
		Level:      level,
		MaxHistory: maxHist,
		Console:    true,
		Output:     buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger, buf
}

func TestNew_CreatesLogFile(t *testing.T) {
	logger, _ := newTestLogger(t, LevelDebug, 10)
	assert.Contains(t, logger.GetLogPath(), "daymind_")
}

func TestNew_WithoutLogDir(t *testing.T) {
	logger, err := New(&Config{Level: LevelInfo})
	require.NoError(t, err)
	assert.Empty(t, logger.GetLogPath())
	assert.NoError(t, logger.Close())
}

func TestLogger_HistoryIsBounded(t *testing.T) {
	logger, _ := newTestLogger(t, LevelInfo, 3)

	for i := 0; i < 5; i++ {
		logger.Info("test", "message", map[string]interface{}{"i": i})
	}

	history := logger.GetHistory(0)
	require.Len(t, history, 3)
	assert.Equal(t, "i=2", history[0].Data)
	assert.Equal(t, "i=4", history[2].Data)

	last := logger.GetHistory(1)
	require.Len(t, last, 1)
	assert.Equal(t, "i=4", last[0].Data)
}

func TestLogger_LevelFiltersHistory(t *testing.T) {
	logger, _ := newTestLogger(t, LevelWarn, 10)

	logger.Debug("test", "hidden", nil)
	logger.Info("test", "hidden", nil)
	logger.Warn("test", "shown", nil)

	history := logger.GetHistory(0)
	require.Len(t, history, 1)
	assert.Equal(t, "warn", history[0].Level)
}

func TestLogger_ErrorRecordsCause(t *testing.T) {
	logger, buf := newTestLogger(t, LevelInfo, 10)

	logger.Error("exchange", "request failed", errors.New("boom"), map[string]interface{}{"kind": "text"})

	history := logger.GetHistory(1)
	require.Len(t, history, 1)
	assert.Equal(t, "kind=text, error=boom", history[0].Data)
	assert.Contains(t, buf.String(), "request failed")
}

func TestLogger_OnLogCallback(t *testing.T) {
	logger, _ := newTestLogger(t, LevelInfo, 10)

	got := make(chan LogEntry, 1)
	logger.SetOnLog(func(e LogEntry) { got <- e })
	logger.Info("feed", "hello", nil)

	select {
	case e := <-got:
		assert.Equal(t, "feed", e.Component)
		assert.Equal(t, "hello", e.Message)
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestLogger_ComponentLoggersReachHistory(t *testing.T) {
	logger, _ := newTestLogger(t, LevelInfo, 10)

	zlog := logger.Component("exchange")
	zlog.Info().Str("kind", "text").Msg(">>> Exchange started")
	zlog.Warn().Err(errors.New("timeout")).Msg("Task refresh after exchange failed")
	zlog.Debug().Msg("hidden")

	history := logger.GetHistory(0)
	require.Len(t, history, 2)
	assert.Equal(t, "info", history[0].Level)
	assert.Equal(t, "exchange", history[0].Component)
	assert.Equal(t, ">>> Exchange started", history[0].Message)
	assert.Equal(t, "kind=text", history[0].Data)
	assert.Equal(t, "warn", history[1].Level)
	assert.Equal(t, "error=timeout", history[1].Data)
}

func TestLogger_SetLevelReachesDerivedLoggers(t *testing.T) {
	logger, _ := newTestLogger(t, LevelInfo, 10)
	zlog := logger.Zerolog()

	zlog.Debug().Msg("before")
	assert.Empty(t, logger.GetHistory(0))

	logger.SetLevel(LevelDebug)
	zlog.Debug().Msg("after")
	history := logger.GetHistory(0)
	require.Len(t, history, 1)
	assert.Equal(t, "after", history[0].Message)

	logger.SetLevel(LevelError)
	zlog.Warn().Msg("dropped")
	assert.Len(t, logger.GetHistory(0), 1)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel(" warn "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestFormatData_Sorted(t *testing.T) {
	assert.Equal(t, "a=1, b=two", formatData(map[string]interface{}{"b": "two", "a": 1}))
	assert.Empty(t, formatData(nil))
}

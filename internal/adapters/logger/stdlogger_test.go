package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"marketReplay/internal/ports"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" Error ", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestStdLogger_SortedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerWithWriter(&buf, LevelDebug, 0)

	l.Info(context.Background(), "Order opened", map[string]interface{}{
		"symbol":     "AAPL",
		"cost":       90,
		"positionId": 1,
	})

	assert.Equal(t, "[INFO] Order opened | cost=90 positionId=1 symbol=AAPL\n", buf.String())
}

func TestStdLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerWithWriter(&buf, LevelWarn, 0)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "hidden")
	l.Error(context.Background(), errors.New("boom"), "Run failed")

	assert.Equal(t, "[ERROR] Run failed | error: boom\n", buf.String())
}

func TestStdLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewStdLoggerWithWriter(&buf, LevelInfo, 0)
	child := base.With(map[string]interface{}{"runId": "abc", "symbol": "X"})

	child.Info(context.Background(), "Step", map[string]interface{}{"symbol": "AAPL"})
	base.Info(context.Background(), "Plain")

	assert.Equal(t, "[INFO] Step | runId=abc symbol=AAPL\n[INFO] Plain\n", buf.String())
	assert.Equal(t, LevelInfo, child.Level())
}

func TestStdLogger_WithFieldsThroughPort(t *testing.T) {
	var buf bytes.Buffer
	base := NewStdLoggerWithWriter(&buf, LevelInfo, 0)

	child := ports.WithFields(base, map[string]interface{}{"runId": "r1"})
	_, isStd := child.(*StdLogger)
	assert.True(t, isStd)

	child.Warn(context.Background(), "Drawdown", map[string]interface{}{"pct": 12})
	assert.Equal(t, "[WARN] Drawdown | pct=12 runId=r1\n", buf.String())
}

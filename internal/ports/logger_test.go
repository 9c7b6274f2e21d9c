package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type entry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	entries []entry
}

func (r *recordingLogger) add(level, msg string, fields []map[string]interface{}) {
	e := entry{level: level, msg: msg}
	if len(fields) > 0 {
		e.fields = fields[0]
	}
	r.entries = append(r.entries, e)
}

func (r *recordingLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	r.add("DEBUG", msg, fields)
}
func (r *recordingLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	r.add("INFO", msg, fields)
}
func (r *recordingLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	r.add("WARN", msg, fields)
}
func (r *recordingLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	r.add("ERROR", msg, fields)
}

func TestWithFields(t *testing.T) {
	ctx := context.Background()
	rec := &recordingLogger{}
	l := WithFields(rec, map[string]interface{}{"runId": "r1", "symbol": "X"})

	l.Debug(ctx, "Bar")
	l.Info(ctx, "Order placed", map[string]interface{}{"symbol": "AAPL"})
	l.Warn(ctx, "Halted")
	l.Error(ctx, errors.New("boom"), "Failed")

	assert.Len(t, rec.entries, 4)
	assert.Equal(t, map[string]interface{}{"runId": "r1", "symbol": "X"}, rec.entries[0].fields)
	assert.Equal(t, map[string]interface{}{"runId": "r1", "symbol": "AAPL"}, rec.entries[1].fields)
	assert.Equal(t, "WARN", rec.entries[2].level)
	assert.Equal(t, "Failed", rec.entries[3].msg)
	assert.Equal(t, "r1", rec.entries[3].fields["runId"])
}

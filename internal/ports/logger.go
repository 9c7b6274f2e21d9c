package ports

import "context"

// Logger defines the structured logging interface used across the kernel,
// the runner and the adapters. Fields are free-form key/value pairs.
type Logger interface {
	// Debug logs a message at Debug level.
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	// Info logs a message at Info level.
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	// Warn logs a message at Warning level.
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs an error message at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}

// WithFields returns a Logger that adds fields to every entry written
// through it. Loggers with their own With method are asked to build the
// child; any other Logger is wrapped.
func WithFields(l Logger, fields map[string]interface{}) Logger {
	if w, ok := l.(interface {
		WithFields(map[string]interface{}) Logger
	}); ok {
		return w.WithFields(fields)
	}
	return fieldLogger{next: l, fields: fields}
}

type fieldLogger struct {
	next   Logger
	fields map[string]interface{}
}

func (f fieldLogger) merge(fields []map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(f.fields))
	for k, v := range f.fields {
		merged[k] = v
	}
	for _, m := range fields {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

func (f fieldLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	f.next.Debug(ctx, msg, f.merge(fields))
}

func (f fieldLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	f.next.Info(ctx, msg, f.merge(fields))
}

func (f fieldLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	f.next.Warn(ctx, msg, f.merge(fields))
}

func (f fieldLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	f.next.Error(ctx, err, msg, f.merge(fields))
}

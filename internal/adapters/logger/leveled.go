package logger

import (
	"context"
	"fmt"
)

// LeveledAdapter exposes a Logger as a retryablehttp.LeveledLogger so HTTP
// retries are logged through the application logger.
type LeveledAdapter struct {
	log Logger
}

// NewLeveledAdapter creates a new LeveledAdapter wrapping the given logger.
func NewLeveledAdapter(log Logger) *LeveledAdapter {
	return &LeveledAdapter{log: log}
}

// Error logs an error message. An "error" key holding an error value is passed
// to the underlying logger as the error.
func (a *LeveledAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := toFields(keysAndValues)
	var err error
	if e, ok := fields["error"].(error); ok {
		err = e
		delete(fields, "error")
	}
	a.log.Error(context.Background(), msg, err, fields)
}

// Info logs an info message.
func (a *LeveledAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.Info(context.Background(), msg, toFields(keysAndValues))
}

// Debug logs a debug message.
func (a *LeveledAdapter) Debug(msg string, keysAndValues ...interface{}) {
	a.log.Debug(context.Background(), msg, toFields(keysAndValues))
}

// Warn logs a warning message.
func (a *LeveledAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.log.Warn(context.Background(), msg, toFields(keysAndValues))
}

// toFields converts alternating key/value pairs to a field map.
// A trailing key without a value is recorded under "extra".
func toFields(keysAndValues []interface{}) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields["extra"] = key
			break
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}

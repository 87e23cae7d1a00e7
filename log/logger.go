package log

import (
	"context"
	"fmt"
)

// Fields carries structured key/value pairs for one log entry.
type Fields map[string]interface{}

// Logger is the logging surface the services depend on.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	With(fields Fields) Logger // Returns a child logger with fields attached
}

// RedactToken renders a bearer or refresh token safe for logs: a short prefix and the length.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return fmt.Sprintf("***(%d)", len(token))
	}
	return fmt.Sprintf("%s***(%d)", token[:4], len(token))
}

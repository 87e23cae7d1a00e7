package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type zerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a Logger writing to stderr, as console output when pretty is set.
func NewZerologAdapter(level zerolog.Level, pretty bool) Logger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return &zerologAdapter{
		logger: zerolog.New(out).Level(level).With().Timestamp().Logger(),
	}
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(l zerolog.Logger) Logger {
	return &zerologAdapter{logger: l}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zerologAdapter{logger: zerolog.Nop()}
}

// ParseLevel falls back to info for empty or unknown levels.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

// withTrace adds trace_id and span_id when ctx carries a valid span.
func withTrace(ctx context.Context, event *zerolog.Event) *zerolog.Event {
	if ctx == nil {
		return event
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		event = event.Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	return event
}

func emit(ctx context.Context, event *zerolog.Event, msg string, fields []Fields) {
	event = withTrace(ctx, event)
	for _, f := range fields {
		event = event.Fields(map[string]interface{}(f))
	}
	event.Msg(msg)
}

func (z *zerologAdapter) Debug(ctx context.Context, msg string, fields ...Fields) {
	emit(ctx, z.logger.Debug(), msg, fields)
}

func (z *zerologAdapter) Info(ctx context.Context, msg string, fields ...Fields) {
	emit(ctx, z.logger.Info(), msg, fields)
}

func (z *zerologAdapter) Warn(ctx context.Context, msg string, fields ...Fields) {
	emit(ctx, z.logger.Warn(), msg, fields)
}

func (z *zerologAdapter) Error(ctx context.Context, msg string, err error, fields ...Fields) {
	emit(ctx, z.logger.Error().Err(err), msg, fields)
}

// With keeps trace ids out of the child context; they are added per call.
func (z *zerologAdapter) With(fields Fields) Logger {
	return &zerologAdapter{logger: z.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}

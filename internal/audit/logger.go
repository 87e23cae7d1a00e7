package audit

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	ActionTokenRefresh   = "token.refresh"
	ActionProviderUnlink = "provider.unlink"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	User      string    `json:"user,omitempty"`   // internal user id
	Target    string    `json:"target,omitempty"` // provider id
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Logger writes one JSON line per event. A nil *Logger drops events.
type Logger struct {
	service string
	out     zerolog.Logger
	now     func() time.Time
}

func New(w io.Writer, service string) *Logger {
	return &Logger{
		service: service,
		out:     zerolog.New(w),
		now:     time.Now,
	}
}

// Log records an audit event.
func (l *Logger) Log(action, user, target, details string, success bool, err error) {
	if l == nil {
		return
	}
	event := Event{
		Timestamp: l.now().UTC(),
		Service:   l.service,
		Action:    action,
		User:      user,
		Target:    target,
		Details:   details,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}

	entry, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		log.Error().Err(marshalErr).Msg("Failed to marshal audit event to JSON")
		l.out.Error().
			Str("service", l.service).
			Str("action", action).
			Str("user", user).
			Str("target", target).
			Bool("success", success).
			Err(err).
			Msg("Audit Log (fallback)")
		return
	}
	l.out.Log().RawJSON("audit_event", entry).Msg("")
}

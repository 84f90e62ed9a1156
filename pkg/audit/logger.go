package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/parley/pkg/contextkeys"
	"github.com/platinummonkey/parley/pkg/observability"
)

// Logger is the interface for audit sinks
type Logger interface {
	// Log records an event. Implementations may fill in ID.
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink
	Close() error
}

// NewEvent creates an event stamped with the current time and the request
// context found in ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		EventType: eventType,
		Status:    status,
		IPAddress: contextkeys.GetClientIP(ctx),
		UserAgent: contextkeys.GetUserAgent(ctx),
		RequestID: observability.GetRequestID(ctx),
	}
}

// NopLogger discards events
type NopLogger struct{}

// Log implements Logger
func (NopLogger) Log(context.Context, *Event) error { return nil }

// Close implements Logger
func (NopLogger) Close() error { return nil }

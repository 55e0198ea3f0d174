package audit

import (
	"context"
	"log/slog"
	"time"
)

type requestIDKey struct{}

// WithRequestID stores the request id that audit records are correlated by.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Event is one audited action
type Event struct {
	MemberID   string
	Action     string
	Resource   string
	ResourceID string
	Status     string
	StatusCode int
	Details    string
}

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

func (al *Logger) LogAction(ctx context.Context, e Event) {
	attrs := []any{
		slog.String("action", e.Action),
		slog.String("resource", e.Resource),
		slog.String("resource_id", e.ResourceID),
		slog.String("member_id", e.MemberID),
		slog.String("status", e.Status),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", time.Now()),
	}
	if e.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status_code", e.StatusCode))
	}
	if e.Details != "" {
		attrs = append(attrs, slog.String("details", e.Details))
	}
	al.logger.Info("audit", attrs...)
}

func (al *Logger) LogDenied(ctx context.Context, memberID, reason string) {
	al.LogAction(ctx, Event{
		MemberID: memberID,
		Action:   "access_denied",
		Resource: "api",
		Status:   "denied",
		Details:  reason,
	})
}

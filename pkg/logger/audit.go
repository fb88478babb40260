package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	CallerID      int64
	Function      string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

func (al *AuditLogger) log(ctx context.Context, auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Int64("caller_id", event.CallerID),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Function != "" {
		attrs = append(attrs, slog.String("function", event.Function))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogLookup records a user lookup and how many records it returned
func (al *AuditLogger) LogLookup(ctx context.Context, callerID int64, criteriaKeys []string, returned int) {
	metadata := map[string]string{"returned": strconv.Itoa(returned)}
	for i, key := range criteriaKeys {
		metadata["criteria_"+strconv.Itoa(i)] = key
	}

	al.log(ctx, "lookup", AuditEvent{
		EventType: "get_users",
		CallerID:  callerID,
		Success:   true,
		Metadata:  metadata,
	})
}

// LogUnenrolment records the outcome of an unenrol batch
func (al *AuditLogger) LogUnenrolment(ctx context.Context, callerID int64, items int, err error) {
	event := AuditEvent{
		EventType: "unenrol_users",
		CallerID:  callerID,
		Success:   err == nil,
		Metadata:  map[string]string{"items": strconv.Itoa(items)},
	}
	if err != nil {
		event.FailureReason = err.Error()
	}

	al.log(ctx, "enrolment", event)
}

// LogAccessDenied records a request refused for missing permissions or credentials
func (al *AuditLogger) LogAccessDenied(ctx context.Context, callerID int64, function, ipAddress, reason string) {
	al.log(ctx, "access", AuditEvent{
		EventType:     "access_denied",
		CallerID:      callerID,
		Function:      function,
		IPAddress:     ipAddress,
		Success:       false,
		FailureReason: reason,
	})
}

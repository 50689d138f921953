package journal

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// NewEntry builds an Entry with trace and span ids extracted from the active
// OpenTelemetry span in ctx. If no span is active (unit tests, dev mode
// without a collector) both ids are left empty.
func NewEntry(ctx context.Context, sessionID string, status Status, step, detail string) *Entry {
	entry := &Entry{
		SessionID:  sessionID,
		Status:     status,
		Step:       step,
		Detail:     detail,
		RecordedAt: time.Now().UTC(),
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}

	return entry
}

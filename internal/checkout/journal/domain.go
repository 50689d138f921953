// Package journal defines the durable audit trail of a checkout session.
//
// Every step transition and every submission attempt is appended as an
// immutable entry. It serves two purposes:
//
//  1. Observability: the back office can see exactly where a checkout is (or
//     stalled) and jump to the distributed trace via the trace_id field.
//
//  2. Auditing the at-most-once guarantee: a submitted/submit_failed pair per
//     attempt makes double-submit bugs visible in the data.
package journal

import "time"

// Status classifies a journal entry.
type Status string

const (
	StatusStarted         Status = "STARTED"
	StatusStepEntered     Status = "STEP_ENTERED"
	StatusSubmitAttempted Status = "SUBMIT_ATTEMPTED"
	StatusSubmitted       Status = "SUBMITTED"
	StatusSubmitFailed    Status = "SUBMIT_FAILED"
	StatusAbandoned       Status = "ABANDONED"
)

// Entry is a single row in the checkout_journal table: a point-in-time
// snapshot of one checkout session transition.
type Entry struct {
	// SessionID identifies the checkout session, so rows can be joined with
	// the resulting order.
	SessionID string

	// Status is the transition kind.
	Status Status

	// Step is the checkout step the session was in (or entered) when the
	// entry was written.
	Step string

	// Detail carries context: the order id on SUBMITTED, the error message
	// on SUBMIT_FAILED, empty otherwise.
	Detail string

	// TraceID is the W3C trace id extracted from the active OpenTelemetry
	// span when the entry was written. Empty when no span is active.
	TraceID string

	// SpanID pinpoints the exact span within the trace.
	SpanID string

	// RecordedAt is the wall-clock time of the transition.
	RecordedAt time.Time
}

// Package activity is an append-only ledger of user-visible happenings,
// mirrored best-effort from the core flows so the UI can show history.
// Failures here never block or fail the flow that emitted the event.
package activity

import (
	"context"
	"time"

	"trailguard/pkg/domain"
)

// Kind names what happened.
type Kind string

const (
	KindReportCreated      Kind = "report_created"
	KindReportSubmitted    Kind = "report_submitted"
	KindReportSubmitFailed Kind = "report_submit_failed"
	KindEmergencyReceived  Kind = "emergency_received"
	KindListenerStarted    Kind = "listener_started"
	KindListenerStopped    Kind = "listener_stopped"
)

// Event is one ledger entry. RefID points at the subject record (an emergency
// id, usually); Details carries free-form context for display.
type Event struct {
	Kind      Kind
	RefID     string
	Account   domain.AccountID
	Timestamp time.Time
	Details   map[string]string
}

// Store appends and lists activity events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRef(ctx context.Context, refID string) ([]Event, error)
}

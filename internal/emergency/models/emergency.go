// Package models defines the emergency domain records shared by the report
// pipeline, the remark listener, and the stores.
package models

import (
	"time"

	"trailguard/pkg/domain"
)

// Type classifies what kind of emergency is being reported.
type Type string

const (
	TypeMedical   Type = "medical"
	TypeRescue    Type = "rescue"
	TypeWeather   Type = "weather"
	TypeEquipment Type = "equipment"
	TypeLost      Type = "lost"
	TypeInjury    Type = "injury"
	TypeIllness   Type = "illness"
	TypeAvalanche Type = "avalanche"
	TypeRockfall  Type = "rockfall"
	TypeOther     Type = "other"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeMedical, TypeRescue, TypeWeather, TypeEquipment, TypeLost,
		TypeInjury, TypeIllness, TypeAvalanche, TypeRockfall, TypeOther:
		return true
	}
	return false
}

// Severity grades how urgent a report is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Status tracks a report through its lifecycle. Transitions only move forward:
// pending -> submitted -> {acknowledged, in_progress} -> {resolved, cancelled}.
// This core only ever writes pending and submitted; later states belong to
// out-of-band collaborators.
type Status string

const (
	StatusPending      Status = "pending"
	StatusSubmitted    Status = "submitted"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusResolved     Status = "resolved"
	StatusCancelled    Status = "cancelled"
)

var statusRank = map[Status]int{
	StatusPending:      0,
	StatusSubmitted:    1,
	StatusAcknowledged: 2,
	StatusInProgress:   2,
	StatusResolved:     3,
	StatusCancelled:    3,
}

func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next respects the forward-only
// lifecycle. Staying on the same status is allowed (idempotent re-writes).
func (s Status) CanAdvanceTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// IsActive reports whether the status counts as an open, unresolved report.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusAcknowledged, StatusInProgress:
		return true
	}
	return false
}

// Emergency is a user's emergency report. Created exactly once per submission
// attempt, persisted locally before any network call, and updated at most once
// more with the ledger outcome. Never deleted by this core.
type Emergency struct {
	ID          domain.EmergencyID `json:"emergency_id"`
	Type        Type               `json:"type"`
	Severity    Severity           `json:"severity"`
	Description string             `json:"description,omitempty"`
	Location    GPSPoint           `json:"location"`
	Reporter    domain.AccountID   `json:"reporter_account"`
	Status      Status             `json:"status"`

	// Non-owning back-references into the expedition log module.
	RelatedLogID       *domain.LogID       `json:"related_log_id,omitempty"`
	RelatedMilestoneID *domain.MilestoneID `json:"related_milestone_id,omitempty"`

	Contacts []string          `json:"emergency_contacts,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`

	// Ledger confirmation, set only after a successful submission.
	TxHash      string `json:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
}

// Clone returns a deep copy so cached records cannot be mutated through
// returned pointers.
func (e *Emergency) Clone() *Emergency {
	if e == nil {
		return nil
	}
	out := *e
	if e.RelatedLogID != nil {
		v := *e.RelatedLogID
		out.RelatedLogID = &v
	}
	if e.RelatedMilestoneID != nil {
		v := *e.RelatedMilestoneID
		out.RelatedMilestoneID = &v
	}
	if e.Contacts != nil {
		out.Contacts = append([]string(nil), e.Contacts...)
	}
	if e.Metadata != nil {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	if e.SubmittedAt != nil {
		v := *e.SubmittedAt
		out.SubmittedAt = &v
	}
	if e.ResolvedAt != nil {
		v := *e.ResolvedAt
		out.ResolvedAt = &v
	}
	out.Location = e.Location.Clone()
	return &out
}

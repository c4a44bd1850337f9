// Package domain holds typed identifiers shared across modules. Distinct types
// keep the compiler from accepting a log id where an emergency id belongs.
package domain

import (
	"strings"

	"github.com/google/uuid"

	"trailguard/pkg/apperrors"
)

type (
	// EmergencyID identifies a single emergency report. Generated exactly once
	// at creation and never reused; a retry produces a fresh id.
	EmergencyID uuid.UUID

	// LogID identifies an expedition log an emergency may reference.
	LogID uuid.UUID

	// MilestoneID identifies a log milestone an emergency may reference.
	MilestoneID uuid.UUID
)

// AccountID is a ledger account address. Opaque to this core; the chain client
// owns its format.
type AccountID string

func (a AccountID) IsZero() bool { return a == "" }

func (a AccountID) String() string { return string(a) }

func NewEmergencyID() EmergencyID { return EmergencyID(uuid.New()) }
func NewLogID() LogID             { return LogID(uuid.New()) }
func NewMilestoneID() MilestoneID { return MilestoneID(uuid.New()) }

func (id EmergencyID) String() string { return uuid.UUID(id).String() }
func (id EmergencyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id LogID) String() string { return uuid.UUID(id).String() }
func (id LogID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id MilestoneID) String() string { return uuid.UUID(id).String() }
func (id MilestoneID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps the ids as canonical UUID strings on the wire and in
// stores instead of raw byte arrays.

func (id EmergencyID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *EmergencyID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = EmergencyID(u)
	return nil
}

func (id LogID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *LogID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = LogID(u)
	return nil
}

func (id MilestoneID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *MilestoneID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = MilestoneID(u)
	return nil
}

// ParseEmergencyID parses and validates an emergency id. IDs must be valid,
// non-nil UUIDs; anything else is rejected at the trust boundary.
func ParseEmergencyID(s string) (EmergencyID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return EmergencyID{}, err
	}
	return EmergencyID(u), nil
}

func ParseLogID(s string) (LogID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return LogID{}, err
	}
	return LogID(u), nil
}

func ParseMilestoneID(s string) (MilestoneID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return MilestoneID{}, err
	}
	return MilestoneID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, apperrors.New(apperrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "invalid id format")
	}
	if u == uuid.Nil {
		return uuid.Nil, apperrors.New(apperrors.CodeInvalidInput, "nil id is not allowed")
	}
	return u, nil
}

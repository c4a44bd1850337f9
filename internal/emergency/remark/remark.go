// Package remark encodes emergency reports into the ledger's arbitrary-data
// remark records and decodes them back. The wire form is a versioned prefix
// followed by a JSON envelope; anything else is somebody else's remark and is
// skipped without noise.
package remark

import (
	"bytes"
	"encoding/json"
	"time"

	"trailguard/internal/emergency/models"
	"trailguard/pkg/apperrors"
	"trailguard/pkg/domain"
)

// Prefix marks remarks that carry an emergency payload.
const Prefix = "TRAILGUARD:v1:"

// Payload is the wire envelope. Required numeric coordinates use pointers so
// an absent field is distinguishable from zero.
type Payload struct {
	EmergencyID string        `json:"emergencyId"`
	Type        string        `json:"type"`
	Severity    string        `json:"severity"`
	Description string        `json:"description,omitempty"`
	Location    wireLocation  `json:"location"`
	RelatedLog  string        `json:"relatedLogId,omitempty"`
	RelatedMile string        `json:"relatedMilestoneId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
}

type wireLocation struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Altitude  *float64   `json:"altitude,omitempty"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Encode serializes an emergency into remark bytes.
func Encode(em *models.Emergency) ([]byte, error) {
	p := Payload{
		EmergencyID: em.ID.String(),
		Type:        string(em.Type),
		Severity:    string(em.Severity),
		Description: em.Description,
		Metadata:    em.Metadata,
		Location: wireLocation{
			Latitude:  f64ptr(em.Location.Latitude),
			Longitude: f64ptr(em.Location.Longitude),
			Altitude:  em.Location.Altitude,
			Accuracy:  em.Location.Accuracy,
		},
	}
	if !em.Location.Timestamp.IsZero() {
		ts := em.Location.Timestamp
		p.Location.Timestamp = &ts
	}
	if !em.CreatedAt.IsZero() {
		created := em.CreatedAt
		p.CreatedAt = &created
	}
	if em.RelatedLogID != nil {
		p.RelatedLog = em.RelatedLogID.String()
	}
	if em.RelatedMilestoneID != nil {
		p.RelatedMile = em.RelatedMilestoneID.String()
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "encode remark payload")
	}
	return append([]byte(Prefix), body...), nil
}

// Decode parses remark bytes into an emergency. Any missing required field is
// a decode failure; callers skip the event and move on.
func Decode(data []byte) (*models.Emergency, error) {
	if !bytes.HasPrefix(data, []byte(Prefix)) {
		return nil, apperrors.New(apperrors.CodeDecode, "not an emergency remark")
	}

	var p Payload
	if err := json.Unmarshal(data[len(Prefix):], &p); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDecode, "malformed remark envelope")
	}

	id, err := domain.ParseEmergencyID(p.EmergencyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDecode, "remark missing emergencyId")
	}
	typ := models.Type(p.Type)
	if !typ.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeDecode, "remark has unknown type %q", p.Type)
	}
	sev := models.Severity(p.Severity)
	if !sev.IsValid() {
		return nil, apperrors.Newf(apperrors.CodeDecode, "remark has unknown severity %q", p.Severity)
	}
	if p.Location.Latitude == nil || p.Location.Longitude == nil {
		return nil, apperrors.New(apperrors.CodeDecode, "remark missing location coordinates")
	}

	em := &models.Emergency{
		ID:          id,
		Type:        typ,
		Severity:    sev,
		Description: p.Description,
		Status:      models.StatusSubmitted,
		Metadata:    p.Metadata,
		Location: models.GPSPoint{
			Latitude:  *p.Location.Latitude,
			Longitude: *p.Location.Longitude,
			Altitude:  p.Location.Altitude,
			Accuracy:  p.Location.Accuracy,
		},
	}
	if p.Location.Timestamp != nil {
		em.Location.Timestamp = *p.Location.Timestamp
	}
	if p.CreatedAt != nil {
		em.CreatedAt = *p.CreatedAt
	}
	if p.RelatedLog != "" {
		logID, err := domain.ParseLogID(p.RelatedLog)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDecode, "remark has invalid relatedLogId")
		}
		em.RelatedLogID = &logID
	}
	if p.RelatedMile != "" {
		mileID, err := domain.ParseMilestoneID(p.RelatedMile)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDecode, "remark has invalid relatedMilestoneId")
		}
		em.RelatedMilestoneID = &mileID
	}
	return em, nil
}

func f64ptr(v float64) *float64 { return &v }

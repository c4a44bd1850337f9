package models

import "time"

// GPSPoint is a single location sample. Optional readings use pointers so a
// missing value is distinguishable from zero.
type GPSPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`   // m/s
	Heading   *float64  `json:"heading,omitempty"` // degrees

	// Advisory fields written by the integrity validator. Never an access
	// control input; a low score gates nothing.
	Suspicious bool `json:"suspicious,omitempty"`
	Confidence *int `json:"confidence,omitempty"`
}

// InRange reports whether latitude and longitude are within valid bounds.
func (p GPSPoint) InRange() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// Clone returns a copy with its own pointer fields.
func (p GPSPoint) Clone() GPSPoint {
	out := p
	if p.Altitude != nil {
		v := *p.Altitude
		out.Altitude = &v
	}
	if p.Accuracy != nil {
		v := *p.Accuracy
		out.Accuracy = &v
	}
	if p.Speed != nil {
		v := *p.Speed
		out.Speed = &v
	}
	if p.Heading != nil {
		v := *p.Heading
		out.Heading = &v
	}
	if p.Confidence != nil {
		v := *p.Confidence
		out.Confidence = &v
	}
	return out
}

// Package gps scores location samples for plausibility. The score is
// advisory: it annotates points and reports, it never gates anything.
// Spoofing cannot be prevented from a client, only flagged.
package gps

import (
	"math"
	"time"

	"trailguard/internal/emergency/models"
)

const (
	earthRadiusMeters = 6371000.0

	// Generic travel ceiling for catching teleport-style jumps.
	maxTravelSpeedKmh = 150.0
	// Activity-pace ceiling; sustained movement above it on foot is unusual.
	paceSpeedKmh = 10.0

	accuracyPoorMeters   = 100.0
	accuracyWeakMeters   = 50.0
	timestampDriftMax    = 60 * time.Second
	altitudeMinMeters    = -100.0
	altitudeMaxMeters    = 9000.0
	altitudeJumpMeters   = 1000.0
	validConfidenceFloor = 50

	fixedPositionRadiusMeters = 11.0
	fixedPositionRunLength    = 5
	jumpDistanceMeters        = 10000.0
	jumpPairRatioMax          = 0.30
)

// Flags are the individual issues a sample can trip.
type Flags struct {
	SuspiciousJump       bool `json:"suspicious_jump,omitempty"`
	SuspiciousSpeed      bool `json:"suspicious_speed,omitempty"`
	InconsistentAltitude bool `json:"inconsistent_altitude,omitempty"`
	TimestampAnomaly     bool `json:"timestamp_anomaly,omitempty"`
}

// Result is a point-level verdict. Confidence is always within [0,100].
type Result struct {
	IsValid    bool     `json:"is_valid"`
	Confidence int      `json:"confidence"`
	Warnings   []string `json:"warnings,omitempty"`
	Flags      Flags    `json:"flags"`
}

// TrackResult is a sequence-level verdict over consecutive samples.
type TrackResult struct {
	Confidence    int      `json:"confidence"`
	Warnings      []string `json:"warnings,omitempty"`
	FixedPosition bool     `json:"fixed_position,omitempty"`
	JumpPattern   bool     `json:"jump_pattern,omitempty"`
}

// ValidatePoint scores a single sample, optionally against the previous
// accepted one. It never fails; the worst input scores zero.
func ValidatePoint(p models.GPSPoint, prev *models.GPSPoint) Result {
	res := Result{Confidence: 100}

	if !p.InRange() {
		res.Confidence = 0
		res.IsValid = false
		res.Warnings = append(res.Warnings, "coordinates out of range")
		return res
	}

	if p.Accuracy != nil {
		switch {
		case *p.Accuracy > accuracyPoorMeters:
			res.Confidence -= 20
			res.Warnings = append(res.Warnings, "poor accuracy")
		case *p.Accuracy > accuracyWeakMeters:
			res.Confidence -= 10
			res.Warnings = append(res.Warnings, "weak accuracy")
		}
	}

	if !p.Timestamp.IsZero() {
		drift := time.Since(p.Timestamp)
		if drift < 0 {
			drift = -drift
		}
		if drift > timestampDriftMax {
			res.Confidence -= 15
			res.Flags.TimestampAnomaly = true
			res.Warnings = append(res.Warnings, "timestamp drifts from clock")
		}
	}

	if prev != nil {
		dt := p.Timestamp.Sub(prev.Timestamp)
		if dt > 0 {
			dist := Haversine(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
			speed := dist / dt.Seconds() // m/s

			maxTravel := maxTravelSpeedKmh / 3.6 * dt.Seconds()
			switch {
			case dist > maxTravel:
				res.Confidence -= 30
				res.Flags.SuspiciousJump = true
				res.Warnings = append(res.Warnings, "jump exceeds travel ceiling")
			case speed > paceSpeedKmh/3.6 && dist > 100:
				res.Confidence -= 15
				res.Flags.SuspiciousSpeed = true
				res.Warnings = append(res.Warnings, "speed above activity pace")
			}

			if p.Altitude != nil && prev.Altitude != nil {
				if math.Abs(*p.Altitude-*prev.Altitude) > altitudeJumpMeters && dist < 1000 {
					res.Confidence -= 20
					res.Flags.InconsistentAltitude = true
					res.Warnings = append(res.Warnings, "altitude change inconsistent with distance")
				}
			}
		}
	}

	if p.Altitude != nil && (*p.Altitude < altitudeMinMeters || *p.Altitude > altitudeMaxMeters) {
		res.Confidence -= 25
		res.Warnings = append(res.Warnings, "altitude outside plausible range")
	}

	if res.Confidence < 0 {
		res.Confidence = 0
	}
	// A teleport-style jump invalidates the sample outright, whatever the
	// remaining score says.
	res.IsValid = res.Confidence >= validConfidenceFloor && !res.Flags.SuspiciousJump
	return res
}

// ValidateTrack scores a sequence of samples: the mean of the per-point
// confidences plus two pattern checks a single point cannot see.
func ValidateTrack(points []models.GPSPoint) TrackResult {
	if len(points) == 0 {
		return TrackResult{Confidence: 100}
	}

	var sum int
	for i := range points {
		var prev *models.GPSPoint
		if i > 0 {
			prev = &points[i-1]
		}
		sum += ValidatePoint(points[i], prev).Confidence
	}
	res := TrackResult{Confidence: sum / len(points)}

	// Replayed or fixed GPS shows up as a long run of near-identical points.
	run := 1
	for i := 1; i < len(points); i++ {
		d := Haversine(points[i-1].Latitude, points[i-1].Longitude, points[i].Latitude, points[i].Longitude)
		if d < fixedPositionRadiusMeters {
			run++
			if run > fixedPositionRunLength {
				res.FixedPosition = true
			}
		} else {
			run = 1
		}
	}
	if res.FixedPosition {
		res.Warnings = append(res.Warnings, "possible fixed or replayed position")
	}

	if len(points) > 1 {
		var jumps int
		for i := 1; i < len(points); i++ {
			d := Haversine(points[i-1].Latitude, points[i-1].Longitude, points[i].Latitude, points[i].Longitude)
			if d > jumpDistanceMeters {
				jumps++
			}
		}
		if float64(jumps)/float64(len(points)-1) > jumpPairRatioMax {
			res.JumpPattern = true
			res.Warnings = append(res.Warnings, "pattern of large jumps")
		}
	}

	return res
}

// Annotate writes the advisory verdict back onto a point.
func Annotate(p *models.GPSPoint, res Result) {
	conf := res.Confidence
	p.Confidence = &conf
	p.Suspicious = !res.IsValid
}

// Haversine returns the great-circle distance in meters between two
// latitude/longitude pairs.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

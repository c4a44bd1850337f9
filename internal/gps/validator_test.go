package gps

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"trailguard/internal/emergency/models"
)

func point(lat, lon float64, ts time.Time) models.GPSPoint {
	return models.GPSPoint{Latitude: lat, Longitude: lon, Timestamp: ts}
}

func TestHaversine_Properties(t *testing.T) {
	assert.Zero(t, Haversine(46.0, 7.5, 46.0, 7.5))

	// Symmetric.
	d1 := Haversine(46.0, 7.5, 47.0, 8.5)
	d2 := Haversine(47.0, 8.5, 46.0, 7.5)
	assert.InDelta(t, d1, d2, 0.001)

	// One degree of longitude at the equator is about 111,195 m.
	d := Haversine(0, 0, 0, 1)
	assert.InDelta(t, 111195, d, 111195*0.01)
}

func TestValidatePoint_OutOfRangeShortCircuits(t *testing.T) {
	bad := point(91, 0, time.Now())
	acc := 500.0
	bad.Accuracy = &acc // must not be double-counted after the short-circuit

	res := ValidatePoint(bad, nil)
	assert.False(t, res.IsValid)
	assert.Equal(t, 0, res.Confidence)
	assert.Len(t, res.Warnings, 1)
}

func TestValidatePoint_AccuracyPenalties(t *testing.T) {
	now := time.Now()

	poor := point(46, 7.5, now)
	a1 := 150.0
	poor.Accuracy = &a1
	res := ValidatePoint(poor, nil)
	assert.Equal(t, 80, res.Confidence)
	assert.True(t, res.IsValid)

	weak := point(46, 7.5, now)
	a2 := 75.0
	weak.Accuracy = &a2
	res = ValidatePoint(weak, nil)
	assert.Equal(t, 90, res.Confidence)
	assert.True(t, res.IsValid)
}

func TestValidatePoint_TimestampAnomaly(t *testing.T) {
	stale := point(46, 7.5, time.Now().Add(-5*time.Minute))
	res := ValidatePoint(stale, nil)
	assert.Equal(t, 85, res.Confidence)
	assert.True(t, res.Flags.TimestampAnomaly)
}

func TestValidatePoint_SuspiciousJump(t *testing.T) {
	now := time.Now()
	prev := point(46.0, 7.5, now.Add(-time.Minute))
	// Roughly 50 km east in one minute.
	cur := point(46.0, 7.5+50.0/(111.195*math.Cos(46*math.Pi/180)), now)

	res := ValidatePoint(cur, &prev)
	assert.True(t, res.Flags.SuspiciousJump)
	assert.False(t, res.IsValid)
	assert.False(t, res.Flags.SuspiciousSpeed, "jump and speed penalties are exclusive")
}

func TestValidatePoint_SuspiciousSpeed(t *testing.T) {
	now := time.Now()
	prev := point(46.0, 7.5, now.Add(-time.Minute))
	// About 500 m in one minute: 30 km/h, above pace but under the ceiling.
	cur := point(46.0045, 7.5, now)

	res := ValidatePoint(cur, &prev)
	assert.True(t, res.Flags.SuspiciousSpeed)
	assert.False(t, res.Flags.SuspiciousJump)
	assert.Equal(t, 85, res.Confidence)
	assert.True(t, res.IsValid)
}

func TestValidatePoint_InconsistentAltitude(t *testing.T) {
	now := time.Now()
	a1, a2 := 1000.0, 2500.0
	prev := point(46.0, 7.5, now.Add(-time.Minute))
	prev.Altitude = &a1
	cur := point(46.0001, 7.5, now)
	cur.Altitude = &a2

	res := ValidatePoint(cur, &prev)
	assert.True(t, res.Flags.InconsistentAltitude)
	assert.Equal(t, 80, res.Confidence)
}

func TestValidatePoint_ImplausibleAltitude(t *testing.T) {
	now := time.Now()
	alt := 12000.0
	p := point(46.0, 7.5, now)
	p.Altitude = &alt

	res := ValidatePoint(p, nil)
	assert.Equal(t, 75, res.Confidence)
	assert.True(t, res.IsValid)
}

func TestValidatePoint_ConfidenceFloorsAtZero(t *testing.T) {
	now := time.Now()
	acc := 500.0
	alt := -4000.0
	prev := point(46.0, 7.5, now.Add(-time.Second))
	prevAlt := 2000.0
	prev.Altitude = &prevAlt
	p := point(47.0, 8.5, now.Add(-10*time.Minute)) // also a timestamp anomaly
	p.Accuracy = &acc
	p.Altitude = &alt

	res := ValidatePoint(p, &prev)
	assert.GreaterOrEqual(t, res.Confidence, 0)
	assert.LessOrEqual(t, res.Confidence, 100)
	assert.False(t, res.IsValid)
}

func TestValidatePoint_NeverPanicsAcrossInputSpace(t *testing.T) {
	now := time.Now()
	coords := []float64{math.Inf(1), math.Inf(-1), math.NaN(), -1000, -90, 0, 90, 1000}
	for _, lat := range coords {
		for _, lon := range coords {
			res := ValidatePoint(point(lat, lon, now), nil)
			assert.GreaterOrEqual(t, res.Confidence, 0)
			assert.LessOrEqual(t, res.Confidence, 100)
		}
	}
}

func TestValidateTrack_FixedPosition(t *testing.T) {
	now := time.Now()
	points := make([]models.GPSPoint, 8)
	for i := range points {
		// ~1 m apart, well inside the fixed-position radius.
		points[i] = point(46.0+float64(i)*0.00001, 7.5, now.Add(time.Duration(i)*time.Minute))
	}
	res := ValidateTrack(points)
	assert.True(t, res.FixedPosition)
	assert.False(t, res.JumpPattern)
}

func TestValidateTrack_JumpPattern(t *testing.T) {
	now := time.Now()
	points := []models.GPSPoint{
		point(46.0, 7.5, now),
		point(46.5, 7.5, now.Add(1*time.Minute)), // ~55 km
		point(46.5, 7.6, now.Add(2*time.Minute)),
		point(47.0, 7.6, now.Add(3*time.Minute)), // ~55 km
	}
	res := ValidateTrack(points)
	assert.True(t, res.JumpPattern)
}

func TestValidateTrack_Empty(t *testing.T) {
	res := ValidateTrack(nil)
	assert.Equal(t, 100, res.Confidence)
}

func TestAnnotate(t *testing.T) {
	p := point(46, 7.5, time.Now())
	res := ValidatePoint(p, nil)
	Annotate(&p, res)
	assert.NotNil(t, p.Confidence)
	assert.Equal(t, res.Confidence, *p.Confidence)
	assert.False(t, p.Suspicious)
}

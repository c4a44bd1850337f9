package gps

import (
	"log/slog"
	"sync"

	"trailguard/internal/emergency/models"
	"trailguard/pkg/domain"
)

// Tracker keeps the last accepted sample per expedition log and scores each
// new one against it before the point is attached anywhere. Scores are
// advisory; every observed point is annotated and remembered regardless.
type Tracker struct {
	mu     sync.Mutex
	last   map[domain.LogID]models.GPSPoint
	logger *slog.Logger
}

func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		last:   make(map[domain.LogID]models.GPSPoint),
		logger: logger,
	}
}

// Observe scores point against the log's previous sample, annotates it, and
// makes it the new reference.
func (t *Tracker) Observe(logID domain.LogID, point models.GPSPoint) (models.GPSPoint, Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var prev *models.GPSPoint
	if p, ok := t.last[logID]; ok {
		prev = &p
	}

	res := ValidatePoint(point, prev)
	Annotate(&point, res)
	if !res.IsValid {
		t.logger.Warn("location sample flagged",
			"log_id", logID.String(),
			"confidence", res.Confidence,
			"warnings", res.Warnings)
	}

	t.last[logID] = point
	return point, res
}

// Last returns the most recent observed sample for a log, if any.
func (t *Tracker) Last(logID domain.LogID) (models.GPSPoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.last[logID]
	return p, ok
}

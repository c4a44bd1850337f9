package listener

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"trailguard/internal/emergency/models"
	"trailguard/pkg/domain"
)

func monitorEvent(block uint64) models.BlockchainEvent {
	return models.BlockchainEvent{
		BlockNumber: block,
		Pallet:      "system",
		Name:        "Remarked",
		Timestamp:   time.Unix(int64(1700000000+block), 0),
		Emergency: models.Emergency{
			ID:       domain.NewEmergencyID(),
			Type:     models.TypeRescue,
			Severity: models.SeverityHigh,
			Status:   models.StatusSubmitted,
		},
	}
}

func TestMonitor_SnapshotNewestFirst(t *testing.T) {
	m := NewMonitor()
	for b := uint64(1); b <= 3; b++ {
		m.Append(monitorEvent(b))
	}

	snap := m.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, uint64(3), snap[0].BlockNumber)
	assert.Equal(t, uint64(2), snap[1].BlockNumber)
	assert.Equal(t, uint64(1), snap[2].BlockNumber)
}

func TestMonitor_EvictsOldestBeyondCapacity(t *testing.T) {
	m := NewMonitor()
	for b := uint64(1); b <= monitorCapacity+10; b++ {
		m.Append(monitorEvent(b))
	}

	snap := m.Snapshot()
	assert.Len(t, snap, monitorCapacity)
	assert.Equal(t, uint64(monitorCapacity+10), snap[0].BlockNumber, "newest event survives")
	assert.Equal(t, uint64(11), snap[len(snap)-1].BlockNumber, "oldest ten evicted")
	assert.Equal(t, monitorCapacity, m.Len())
}

func TestMonitor_SnapshotIsACopy(t *testing.T) {
	m := NewMonitor()
	m.Append(monitorEvent(1))

	snap := m.Snapshot()
	snap[0].BlockNumber = 99

	assert.Equal(t, uint64(1), m.Snapshot()[0].BlockNumber)
}

func TestMonitor_EmptySnapshot(t *testing.T) {
	m := NewMonitor()
	assert.Empty(t, m.Snapshot())
	assert.Zero(t, m.Len())
}

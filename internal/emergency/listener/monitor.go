package listener

import (
	"sync"

	"trailguard/internal/emergency/models"
)

// monitorCapacity bounds the live-monitor buffer.
const monitorCapacity = 50

// Monitor is a bounded, thread-safe buffer of the most recent decoded events
// for live display. When full, the oldest entry is dropped.
type Monitor struct {
	mu       sync.Mutex
	events   []models.BlockchainEvent
	head     int
	count    int
	capacity int
}

func NewMonitor() *Monitor {
	return &Monitor{
		events:   make([]models.BlockchainEvent, monitorCapacity),
		capacity: monitorCapacity,
	}
}

// Append records an event, evicting the oldest when the buffer is full.
func (m *Monitor) Append(event models.BlockchainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[m.head] = event
	m.head = (m.head + 1) % m.capacity
	if m.count < m.capacity {
		m.count++
	}
}

// Snapshot returns the buffered events newest first.
func (m *Monitor) Snapshot() []models.BlockchainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.BlockchainEvent, 0, m.count)
	for i := 0; i < m.count; i++ {
		idx := (m.head - 1 - i + m.capacity) % m.capacity
		out = append(out, m.events[idx])
	}
	return out
}

// Len returns the number of buffered events.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

package models

import "time"

// BlockchainEvent is a decoded ledger event as the listener surfaces it to the
// live monitor. The (BlockNumber, Pallet, Name, Timestamp) tuple doubles as
// the de-duplication key; it is heuristic, not a ledger-assigned identity.
type BlockchainEvent struct {
	BlockNumber uint64    `json:"block_number"`
	Pallet      string    `json:"pallet"`
	Name        string    `json:"name"`
	Timestamp   time.Time `json:"timestamp"`
	Emergency   Emergency `json:"emergency"`
}

// DedupeKey identifies an event within the listener's recent-event window.
type DedupeKey struct {
	BlockNumber uint64
	Pallet      string
	Name        string
	Timestamp   int64 // unix nanos, comparable
}

// Key builds the de-duplication tuple for this event.
func (e BlockchainEvent) Key() DedupeKey {
	return DedupeKey{
		BlockNumber: e.BlockNumber,
		Pallet:      e.Pallet,
		Name:        e.Name,
		Timestamp:   e.Timestamp.UnixNano(),
	}
}

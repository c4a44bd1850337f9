package store

import (
	"context"
	"sync"

	"trailguard/internal/emergency/models"
	"trailguard/pkg/apperrors"
	"trailguard/pkg/domain"
)

// InMemoryStore keeps records in a map with an explicit insertion-order slice.
// The default for embedded use and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.EmergencyID]*models.Emergency
	order   []domain.EmergencyID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[domain.EmergencyID]*models.Emergency),
	}
}

func (s *InMemoryStore) Save(_ context.Context, em *models.Emergency) error {
	if em == nil || em.ID.IsNil() {
		return apperrors.New(apperrors.CodeInvalidInput, "emergency with a valid id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[em.ID]; !exists {
		s.order = append(s.order, em.ID)
	}
	s.records[em.ID] = em.Clone()
	return nil
}

func (s *InMemoryStore) GetAll(_ context.Context) ([]*models.Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Emergency, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

func (s *InMemoryStore) GetByLogID(_ context.Context, logID domain.LogID) ([]*models.Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Emergency
	for _, id := range s.order {
		em := s.records[id]
		if em.RelatedLogID != nil && *em.RelatedLogID == logID {
			out = append(out, em.Clone())
		}
	}
	return out, nil
}

// Package store persists emergency records. The contract is durable keyed
// persistence with read-your-writes: a report saved before a network attempt
// must survive a failed submission.
package store

import (
	"context"

	"trailguard/internal/emergency/models"
	"trailguard/pkg/domain"
)

// Store is the local emergency store contract. Save is an upsert keyed by the
// emergency id; iteration order of GetAll and GetByLogID is insertion order,
// which GetActive selection depends on.
type Store interface {
	Save(ctx context.Context, em *models.Emergency) error
	GetAll(ctx context.Context) ([]*models.Emergency, error)
	GetByLogID(ctx context.Context, logID domain.LogID) ([]*models.Emergency, error)
}

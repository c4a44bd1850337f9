// Package ports declares the emergency service's outbound dependencies so the
// pipeline can be tested against mocks instead of a wallet or a live ledger.
package ports

import (
	"context"

	"trailguard/internal/activity"
	"trailguard/internal/chain"
	"trailguard/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Wallet answers the precondition questions asked before any report is built.
type Wallet interface {
	Unlocked() bool
	ActiveAccount() (domain.AccountID, bool)
}

// ChainGateway is the slice of the chain client the pipeline needs.
type ChainGateway interface {
	State() chain.ConnState
	Submit(ctx context.Context, signer string, payload []byte) (chain.SubmitResult, error)
}

// ActivityPublisher mirrors pipeline outcomes into the activity ledger.
type ActivityPublisher interface {
	Emit(ctx context.Context, event activity.Event) error
}

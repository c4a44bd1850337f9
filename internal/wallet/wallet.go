// Package wallet tracks the signing account and its lock state. The actual
// key material lives with the chain client; this package only answers the
// precondition questions the report pipeline asks.
package wallet

import (
	"sync"

	"trailguard/pkg/domain"
)

// Wallet holds the active signing account. Zero value is locked with no
// account.
type Wallet struct {
	mu       sync.RWMutex
	unlocked bool
	account  domain.AccountID
}

// New returns a wallet preloaded with account. A non-zero account starts
// unlocked, which suits single-operator deployments configured from the
// environment.
func New(account domain.AccountID) *Wallet {
	return &Wallet{account: account, unlocked: !account.IsZero()}
}

func (w *Wallet) Unlocked() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.unlocked
}

// ActiveAccount returns the selected account and whether one is selected.
func (w *Wallet) ActiveAccount() (domain.AccountID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.account, !w.account.IsZero()
}

func (w *Wallet) Unlock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unlocked = true
}

func (w *Wallet) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unlocked = false
}

// SetActiveAccount switches the signing account.
func (w *Wallet) SetActiveAccount(account domain.AccountID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.account = account
}

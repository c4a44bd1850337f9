package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trailguard/pkg/domain"
)

func TestNew_WithAccountStartsUnlocked(t *testing.T) {
	w := New(domain.AccountID("5Grw"))

	assert.True(t, w.Unlocked())
	account, ok := w.ActiveAccount()
	assert.True(t, ok)
	assert.Equal(t, domain.AccountID("5Grw"), account)
}

func TestNew_EmptyAccountStartsLocked(t *testing.T) {
	w := New("")

	assert.False(t, w.Unlocked())
	_, ok := w.ActiveAccount()
	assert.False(t, ok)
}

func TestLockUnlock(t *testing.T) {
	w := New(domain.AccountID("5Grw"))

	w.Lock()
	assert.False(t, w.Unlocked())

	w.Unlock()
	assert.True(t, w.Unlocked())
}

func TestSetActiveAccount(t *testing.T) {
	w := New("")
	w.SetActiveAccount(domain.AccountID("5Fhn"))

	account, ok := w.ActiveAccount()
	assert.True(t, ok)
	assert.Equal(t, domain.AccountID("5Fhn"), account)
}

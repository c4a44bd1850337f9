package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailguard/pkg/apperrors"
)

func TestParseEmergencyID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseEmergencyID("")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEmergencyID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseEmergencyID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID with surrounding whitespace", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseEmergencyID(" " + valid.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, EmergencyID(valid), id)
	})
}

func TestNewEmergencyID_Unique(t *testing.T) {
	a := NewEmergencyID()
	b := NewEmergencyID()
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsNil())
}

func TestEmergencyID_JSONRoundTrip(t *testing.T) {
	id := NewEmergencyID()
	b, err := id.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, id.String(), string(b))

	var got EmergencyID
	require.NoError(t, got.UnmarshalText(b))
	assert.Equal(t, id, got)
}

func TestAccountID_IsZero(t *testing.T) {
	assert.True(t, AccountID("").IsZero())
	assert.False(t, AccountID("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY").IsZero())
}

package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/auditsource/engine/pkg/apperrors"
)

func TestSignoffSlot_SetAndClearKeepPairTogether(t *testing.T) {
	var slot SignoffSlot
	assert.True(t, slot.Valid())
	assert.False(t, slot.Signed())

	signer := uuid.New()
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	slot.Set(signer, at)
	assert.True(t, slot.Signed())
	assert.True(t, slot.Valid())
	assert.Equal(t, signer, *slot.SignedBy)
	assert.Equal(t, at, *slot.SignedAt)

	slot.Clear()
	assert.False(t, slot.Signed())
	assert.True(t, slot.Valid())
	assert.Nil(t, slot.SignedBy)
	assert.Nil(t, slot.SignedAt)
}

func TestSignoffSlot_PartialStateIsInvalid(t *testing.T) {
	signer := uuid.New()
	slot := SignoffSlot{SignedBy: &signer}
	assert.False(t, slot.Valid())
	assert.False(t, slot.Signed())

	control := &EngagementControl{PreparerSignoff: slot}
	assert.ErrorIs(t, control.ValidateSlots(), apperrors.ErrConsistency)
}

func TestHasAuditorWork(t *testing.T) {
	c := &EngagementControl{}
	assert.False(t, c.HasAuditorWork())

	c.TestResults = "No exceptions noted."
	assert.True(t, c.HasAuditorWork())
}

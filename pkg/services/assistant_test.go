package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
)

func TestAssistantAsk_RecordsConversation(t *testing.T) {
	generator := &mockGenerator{answer: "Start with the access management domain."}
	repo := &mockConversationRepo{}
	svc := NewAssistantService(generator, repo, zap.NewNop())

	conversation, err := svc.Ask(context.Background(), assessorActor, "  Where should I focus first?  ")
	require.NoError(t, err)
	assert.Equal(t, "Where should I focus first?", conversation.Question)
	assert.Equal(t, "Start with the access management domain.", conversation.Answer)
	assert.Equal(t, assessorActor.UserID, conversation.AskedBy)
	assert.Len(t, repo.conversations, 1)
}

func TestAssistantAsk_BlankQuestionRejected(t *testing.T) {
	svc := NewAssistantService(&mockGenerator{}, &mockConversationRepo{}, zap.NewNop())

	_, err := svc.Ask(context.Background(), assessorActor, "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAssistantAsk_GeneratorFailureNotRecorded(t *testing.T) {
	repo := &mockConversationRepo{}
	svc := NewAssistantService(&mockGenerator{err: errors.New("connection refused")}, repo, zap.NewNop())

	_, err := svc.Ask(context.Background(), assessorActor, "What is SOC 2?")
	assert.Error(t, err)
	assert.Empty(t, repo.conversations)
}

func TestAssistantHistory(t *testing.T) {
	generator := &mockGenerator{answer: "ok"}
	repo := &mockConversationRepo{}
	svc := NewAssistantService(generator, repo, zap.NewNop())

	for _, q := range []string{"one", "two", "three"} {
		_, err := svc.Ask(context.Background(), adminActor, q)
		require.NoError(t, err)
	}

	history, err := svc.History(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
	"github.com/auditsource/engine/pkg/llm"
	"github.com/auditsource/engine/pkg/models"
	"github.com/auditsource/engine/pkg/repositories"
)

// AssistantService answers free-text audit questions through the
// configured language model and records each exchange.
type AssistantService interface {
	Ask(ctx context.Context, actor auth.Actor, question string) (*models.AssistantConversation, error)
	History(ctx context.Context, limit int) ([]*models.AssistantConversation, error)
}

type assistantService struct {
	generator        llm.Generator
	conversationRepo repositories.ConversationRepository
	logger           *zap.Logger
}

// NewAssistantService creates a new AssistantService.
func NewAssistantService(generator llm.Generator, conversationRepo repositories.ConversationRepository, logger *zap.Logger) AssistantService {
	return &assistantService{
		generator:        generator,
		conversationRepo: conversationRepo,
		logger:           logger.Named("assistant-service"),
	}
}

var _ AssistantService = (*assistantService)(nil)

func (s *assistantService) Ask(ctx context.Context, actor auth.Actor, question string) (*models.AssistantConversation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.NewValidationError("question is required")
	}

	answer, err := s.generator.Generate(ctx, question)
	if err != nil {
		s.logger.Warn("Assistant generation failed", zap.Error(err))
		return nil, err
	}

	conversation := &models.AssistantConversation{
		ID:       uuid.New(),
		Question: question,
		Answer:   answer,
		AskedBy:  actor.UserID,
	}
	if err := s.conversationRepo.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *assistantService) History(ctx context.Context, limit int) ([]*models.AssistantConversation, error) {
	return s.conversationRepo.ListRecent(ctx, limit)
}

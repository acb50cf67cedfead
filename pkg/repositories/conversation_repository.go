package repositories

import (
	"context"
	"fmt"

	"github.com/auditsource/engine/pkg/database"
	"github.com/auditsource/engine/pkg/models"
)

// ConversationRepository stores AI assistant exchanges.
type ConversationRepository interface {
	Create(ctx context.Context, conv *models.AssistantConversation) error
	ListRecent(ctx context.Context, limit int) ([]*models.AssistantConversation, error)
}

type conversationRepository struct{}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository() ConversationRepository {
	return &conversationRepository{}
}

var _ ConversationRepository = (*conversationRepository)(nil)

func (r *conversationRepository) Create(ctx context.Context, conv *models.AssistantConversation) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO assistant_conversations (question, answer, asked_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query, conv.Question, conv.Answer, conv.AskedBy).
		Scan(&conv.ID, &conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) ListRecent(ctx context.Context, limit int) ([]*models.AssistantConversation, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, question, answer, asked_by, created_at
		FROM assistant_conversations
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := scope.Conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.AssistantConversation
	for rows.Next() {
		var c models.AssistantConversation
		if err := rows.Scan(&c.ID, &c.Question, &c.Answer, &c.AskedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

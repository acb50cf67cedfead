package models

import (
	"time"

	"github.com/google/uuid"
)

// AssistantConversation records one question/answer exchange with the
// AI assistant.
type AssistantConversation struct {
	ID        uuid.UUID `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	AskedBy   uuid.UUID `json:"asked_by"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type SystemPrompt struct {
	Content    string   `json:"content"`
	Guidelines []string `json:"guidelines"`
}

type ChatMessage struct {
	Role    string `json:"role" validate:"oneof=user assistant"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message             string        `json:"message" validate:"required"`
	SystemPrompt        SystemPrompt  `json:"system_prompt"`
	ConversationHistory []ChatMessage `json:"conversation_history,omitempty" validate:"dive"`
	LLMProvider         string        `json:"llm_provider,omitempty"`
	ModelName           string        `json:"model_name,omitempty"`
}

type ChatResponse struct {
	Response     string   `json:"response"`
	ContextUsed  []string `json:"context_used"`
	ComplianceID string   `json:"compliance_id"`
}

type DocumentUpload struct {
	Content  string            `json:"content" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type DocumentChunk struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	ChunkIndex int               `json:"chunk_index" db:"chunk_index"`
	Content    string            `json:"content" db:"content"`
	Embedding  []float32         `json:"-" db:"embedding"`
	TokenCount int               `json:"token_count" db:"token_count"`
	Metadata   map[string]string `json:"metadata" db:"metadata"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

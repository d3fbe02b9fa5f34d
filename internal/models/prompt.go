package models

import (
	"time"
)

type PromptVersion struct {
	ID        string    `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Score     *float64  `json:"score,omitempty" db:"score"`
	Notes     *string   `json:"notes,omitempty" db:"notes"`
}

type PromptHistoryResponse struct {
	CurrentVersion *string         `json:"current_version"`
	Versions       []PromptVersion `json:"versions"`
}

type PromptImproveRequest struct {
	Rationale       string   `json:"rationale,omitempty"`
	EvaluationIDs   []string `json:"evaluation_ids,omitempty"`
	TargetScore     *float64 `json:"target_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	RunReevaluation bool     `json:"run_reevaluation"`
}

type ReEvaluationResult struct {
	Evaluations []EvaluationResult `json:"evaluations"`
	Summary     string             `json:"summary"`
}

type PromptImproveResponse struct {
	NewVersion      PromptVersion       `json:"new_version"`
	PreviousVersion PromptVersion       `json:"previous_version"`
	Message         string              `json:"message"`
	Reevaluation    *ReEvaluationResult `json:"reevaluation,omitempty"`
}

// Scenario is one fixture replayed against a new prompt version.
type Scenario struct {
	UserMessage   string   `json:"user_message"`
	ModelResponse string   `json:"model_response"`
	Guidelines    []string `json:"guidelines"`
}

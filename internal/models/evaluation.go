package models

import (
	"time"
)

type EvaluationRequest struct {
	SystemPrompt  string         `json:"system_prompt,omitempty"`
	UserMessage   string         `json:"user_message" validate:"required"`
	ModelResponse string         `json:"model_response" validate:"required"`
	PromptVersion *string        `json:"prompt_version,omitempty"`
	Guidelines    []string       `json:"guidelines,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	LLMProvider   string         `json:"llm_provider,omitempty"`
	ModelName     string         `json:"model_name,omitempty"`
}

type EvaluationScores struct {
	PreferenceAlignment float64 `json:"preference_alignment" db:"preference_alignment"`
	GuidelineAdherence  float64 `json:"guideline_adherence" db:"guideline_adherence"`
	Overall             float64 `json:"overall" db:"overall"`
}

type MatchedReference struct {
	ReferenceID          *int    `json:"reference_id"`
	SimilarityToChosen   float64 `json:"similarity_to_chosen"`
	SimilarityToRejected float64 `json:"similarity_to_rejected"`
	ChosenPreview        string  `json:"chosen_preview"`
	RejectedPreview      string  `json:"rejected_preview"`
}

type EvaluationResult struct {
	EvaluationID     string                `json:"evaluation_id" db:"id"`
	PromptVersion    *string               `json:"prompt_version" db:"prompt_version"`
	Scores           EvaluationScores      `json:"scores"`
	MatchedReference *MatchedReference     `json:"matched_reference"`
	GuidelineResults []GuidelineCompliance `json:"guideline_results"`
	Notes            *string               `json:"notes" db:"notes"`
	Metadata         map[string]any        `json:"metadata" db:"metadata"`
	CreatedAt        time.Time             `json:"created_at" db:"created_at"`
}

// Violations returns the judged guidelines that were not followed, in input order.
func (r EvaluationResult) Violations() []string {
	var violated []string
	for _, g := range r.GuidelineResults {
		if !g.Followed {
			violated = append(violated, g.Guideline)
		}
	}
	return violated
}

// ReferenceRecord is one preference pair from the reference dataset.
type ReferenceRecord struct {
	ReferenceID *int   `json:"id"`
	Chosen      string `json:"chosen"`
	Rejected    string `json:"rejected"`
}

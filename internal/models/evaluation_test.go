package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluationResult_Violations(t *testing.T) {
	r := EvaluationResult{GuidelineResults: []GuidelineCompliance{
		{Guideline: "Respond in Chinese", Followed: false},
		{Guideline: "Be concise", Followed: true},
		{Guideline: "No emotions", Followed: false},
	}}
	assert.Equal(t, []string{"Respond in Chinese", "No emotions"}, r.Violations())
	assert.Empty(t, EvaluationResult{}.Violations())
}

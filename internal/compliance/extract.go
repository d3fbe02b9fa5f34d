package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/promptcompliance/internal/llm"
)

const minGuidelineRunes = 4

// ExtractGuidelines asks the judge to split a system prompt into short actionable guidelines.
// Any failure yields an empty list.
func (c *Checker) ExtractGuidelines(ctx context.Context, systemPrompt string, opts Options) []string {
	resp, err := c.gateway.Chat(ctx, llm.ChatRequest{
		Provider: opts.Provider,
		Model:    opts.Model,
		Messages: []llm.Message{
			{Role: "user", Content: buildExtractPrompt(systemPrompt)},
		},
		JSONMode: true,
	})
	if err != nil {
		slog.Warn("guideline extraction failed", "error", err)
		return []string{}
	}

	raw, err := parseGuidelineList(resp.Content)
	if err != nil {
		slog.Warn("guideline extraction returned unparsable output", "error", err)
		return []string{}
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			if item == nil {
				continue
			}
			s = fmt.Sprint(item)
		}
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) < minGuidelineRunes {
			continue
		}
		out = append(out, s)
	}
	return out
}

// parseGuidelineList accepts {"guidelines": [...]} or a bare JSON array.
func parseGuidelineList(content string) ([]any, error) {
	content = stripCodeFence(content)

	var obj struct {
		Guidelines []any `json:"guidelines"`
	}
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		return obj.Guidelines, nil
	}

	var arr []any
	if err := json.Unmarshal([]byte(content), &arr); err != nil {
		return nil, fmt.Errorf("decode guidelines: %w", err)
	}
	return arr, nil
}

package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/promptcompliance/internal/llm"
	"github.com/nikhilbhutani/promptcompliance/internal/metrics"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

var ErrAnalysisNotFound = errors.New("compliance analysis not found")

const (
	explanationMissing = "분석 결과를 찾을 수 없음"
	explanationEmpty   = "분석 실패"
	explanationFailed  = "분석 중 오류 발생: "
)

// Options selects the provider and model for a single judge call. Empty fields use the gateway defaults.
type Options struct {
	Provider string
	Model    string
}

// Checker judges responses against guidelines through an LLM and keeps the resulting analyses.
type Checker struct {
	gateway llm.Gateway
	store   AnalysisStore
	locale  string
}

func NewChecker(gw llm.Gateway, store AnalysisStore, locale string) *Checker {
	if locale == "" {
		locale = "Korean"
	}
	return &Checker{gateway: gw, store: store, locale: locale}
}

type judgeResult struct {
	GuidelineIndex any    `json:"guideline_index"`
	Followed       bool   `json:"followed"`
	Explanation    string `json:"explanation"`
	Evidence       any    `json:"evidence"`
}

// Check returns one result per guideline, in input order. Judge failures degrade to
// followed=false entries instead of errors.
func (c *Checker) Check(ctx context.Context, guidelines []string, userMessage, response string, opts Options) []models.GuidelineCompliance {
	if len(guidelines) == 0 {
		return []models.GuidelineCompliance{}
	}

	resp, err := c.gateway.Chat(ctx, llm.ChatRequest{
		Provider: opts.Provider,
		Model:    opts.Model,
		Messages: []llm.Message{
			{Role: "user", Content: buildJudgePrompt(c.locale, guidelines, userMessage, response)},
		},
		JSONMode: true,
	})
	if err != nil {
		slog.Warn("guideline judge call failed", "error", err)
		metrics.JudgeDegradedTotal.WithLabelValues("call").Inc()
		return degraded(guidelines, err)
	}

	var parsed struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &parsed); err != nil {
		slog.Warn("guideline judge returned unparsable output", "error", err)
		metrics.JudgeDegradedTotal.WithLabelValues("parse").Inc()
		return degraded(guidelines, fmt.Errorf("parse judge response: %w", err))
	}

	// Entries are decoded one by one so a malformed entry only loses its own guideline.
	byIndex := make(map[int]judgeResult, len(parsed.Results))
	for _, raw := range parsed.Results {
		var r judgeResult
		if err := json.Unmarshal(raw, &r); err != nil {
			slog.Warn("skipping malformed judge entry", "entry", string(raw), "error", err)
			continue
		}
		idx, ok := toIndex(r.GuidelineIndex)
		if !ok {
			continue
		}
		if _, seen := byIndex[idx]; !seen {
			byIndex[idx] = r
		}
	}

	results := make([]models.GuidelineCompliance, len(guidelines))
	for i, g := range guidelines {
		r, ok := byIndex[i+1]
		if !ok {
			metrics.JudgeDegradedTotal.WithLabelValues("missing").Inc()
			results[i] = models.GuidelineCompliance{Guideline: g, Followed: false, Explanation: explanationMissing}
			continue
		}
		explanation := r.Explanation
		if explanation == "" {
			explanation = explanationEmpty
		}
		results[i] = models.GuidelineCompliance{
			Guideline:   g,
			Followed:    r.Followed,
			Explanation: explanation,
			Evidence:    toEvidence(r.Evidence),
		}
	}
	return results
}

// Analyze judges the response, aggregates a 0-100 score and summary, and stores the analysis.
func (c *Checker) Analyze(ctx context.Context, guidelines []string, userMessage, response string, opts Options) *models.ComplianceAnalysis {
	results := c.Check(ctx, guidelines, userMessage, response, opts)

	score := 0.0
	if len(results) > 0 {
		score = float64(countFollowed(results)) / float64(len(results)) * 100
	}

	analysis := &models.ComplianceAnalysis{
		ComplianceID:     uuid.NewString(),
		OverallScore:     score,
		GuidelineResults: results,
		Summary:          summarize(results, score),
	}

	if err := c.store.Put(ctx, analysis); err != nil {
		slog.Error("failed to store compliance analysis", "compliance_id", analysis.ComplianceID, "error", err)
	}
	return analysis
}

// Analysis returns a stored analysis or ErrAnalysisNotFound.
func (c *Checker) Analysis(ctx context.Context, id string) (*models.ComplianceAnalysis, error) {
	return c.store.Get(ctx, id)
}

func summarize(results []models.GuidelineCompliance, score float64) string {
	followed := countFollowed(results)

	var b strings.Builder
	fmt.Fprintf(&b, "전체 %d개 가이드라인 중 %d개를 준수했습니다 (%.1f%%). ", len(results), followed, score)

	if followed < len(results) {
		b.WriteString("\n\n미준수 가이드라인:\n")
		n := 0
		for _, r := range results {
			if r.Followed {
				continue
			}
			n++
			fmt.Fprintf(&b, "%d. %s\n", n, r.Guideline)
		}
	}
	return b.String()
}

func countFollowed(results []models.GuidelineCompliance) int {
	n := 0
	for _, r := range results {
		if r.Followed {
			n++
		}
	}
	return n
}

func degraded(guidelines []string, cause error) []models.GuidelineCompliance {
	results := make([]models.GuidelineCompliance, len(guidelines))
	for i, g := range guidelines {
		results[i] = models.GuidelineCompliance{
			Guideline:   g,
			Followed:    false,
			Explanation: explanationFailed + cause.Error(),
		}
	}
	return results
}

func toIndex(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

func toEvidence(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return &t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
}

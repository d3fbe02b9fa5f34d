package improver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nikhilbhutani/promptcompliance/internal/llm"
	"github.com/nikhilbhutani/promptcompliance/internal/metrics"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/prompt"
	"github.com/nikhilbhutani/promptcompliance/internal/reference"
)

const (
	historyLimit   = 50
	maxViolations  = 3
	autoHeader     = "# Auto-adjustments"
	rewriteTemp    = 0.2
	improveMessage = "새 프롬프트 버전을 생성했습니다"

	rationaleNoData  = "평가 데이터 없음"
	rationaleStable  = "최근 평가 안정적"
	rationaleViolate = "최근 위반: "
)

type PromptStore interface {
	Current(ctx context.Context) (*models.PromptVersion, error)
	Version(ctx context.Context, id string) (*models.PromptVersion, error)
	ListVersions(ctx context.Context) ([]models.PromptVersion, error)
	SaveNewVersion(ctx context.Context, content string, notes *string, score *float64) (*models.PromptVersion, error)
	UpdateVersion(ctx context.Context, id string, score *float64, notes *string) error
}

type Evaluator interface {
	Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.EvaluationResult, error)
	ByIDs(ctx context.Context, ids []string) ([]models.EvaluationResult, error)
}

type Options struct {
	Provider  string
	Model     string
	Scenarios []models.Scenario
}

// Service rewrites the current prompt from recent violations and validates new versions against fixed scenarios.
type Service struct {
	store     PromptStore
	evaluator Evaluator
	gateway   llm.Gateway
	provider  string
	model     string
	scenarios []models.Scenario

	mu     sync.RWMutex
	recent []models.EvaluationResult

	now func() time.Time
}

func NewService(store PromptStore, evaluator Evaluator, gw llm.Gateway, opts Options) *Service {
	return &Service{
		store:     store,
		evaluator: evaluator,
		gateway:   gw,
		provider:  opts.Provider,
		model:     opts.Model,
		scenarios: opts.Scenarios,
		now:       time.Now,
	}
}

func (s *Service) History(ctx context.Context) (*models.PromptHistoryResponse, error) {
	versions, err := s.store.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	resp := &models.PromptHistoryResponse{Versions: versions}
	if len(versions) == 0 {
		return resp, nil
	}

	current, err := s.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	resp.CurrentVersion = &current.ID
	return resp, nil
}

// RecordEvaluations replaces the rolling history, keeping the newest entries. Input is oldest first.
func (s *Service) RecordEvaluations(evaluations []models.EvaluationResult) {
	if len(evaluations) > historyLimit {
		evaluations = evaluations[len(evaluations)-historyLimit:]
	}
	snapshot := make([]models.EvaluationResult, len(evaluations))
	copy(snapshot, evaluations)

	s.mu.Lock()
	s.recent = snapshot
	s.mu.Unlock()
}

func (s *Service) Improve(ctx context.Context, req models.PromptImproveRequest) (*models.PromptImproveResponse, error) {
	previous, err := s.store.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current prompt: %w", err)
	}

	rationale := strings.TrimSpace(req.Rationale)
	if rationale == "" {
		rationale = s.deriveRationale(ctx, req.EvaluationIDs)
	}

	content := s.rewrite(ctx, previous.Content, rationale, req.TargetScore)
	notes := fmt.Sprintf("Auto-generated on %s | reason: %s", s.now().UTC().Format(time.RFC3339), rationale)

	next, err := s.store.SaveNewVersion(ctx, content, &notes, nil)
	if err != nil {
		return nil, fmt.Errorf("save prompt version: %w", err)
	}
	slog.Info("prompt version created", "version", next.ID, "previous", previous.ID, "rationale", rationale)

	var re *models.ReEvaluationResult
	if req.RunReevaluation {
		// The new version stays current even when its re-evaluation fails.
		re, err = s.runScenarios(ctx, next)
		if err != nil {
			slog.Error("re-evaluation failed", "version", next.ID, "error", err)
		}
	}

	return &models.PromptImproveResponse{
		NewVersion:      *next,
		PreviousVersion: *previous,
		Message:         improveMessage,
		Reevaluation:    re,
	}, nil
}

// Reevaluate replays the scenario suite against an existing version and backfills its score.
func (s *Service) Reevaluate(ctx context.Context, versionID string) (*models.ReEvaluationResult, error) {
	v, err := s.store.Version(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return s.runScenarios(ctx, v)
}

func (s *Service) runScenarios(ctx context.Context, v *models.PromptVersion) (*models.ReEvaluationResult, error) {
	results := make([]models.EvaluationResult, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		res, err := s.evaluator.Evaluate(ctx, models.EvaluationRequest{
			SystemPrompt:  v.Content,
			UserMessage:   sc.UserMessage,
			ModelResponse: sc.ModelResponse,
			PromptVersion: &v.ID,
			Guidelines:    sc.Guidelines,
		})
		if err != nil {
			return &models.ReEvaluationResult{
				Evaluations: results,
				Summary:     fmt.Sprintf("총 %d건 중 %d건 재평가 후 실패: %v", len(s.scenarios), len(results), err),
			}, fmt.Errorf("re-evaluate scenario %d: %w", len(results)+1, err)
		}
		results = append(results, *res)
	}

	if len(results) > 0 {
		score := meanOverall(results)
		if err := s.store.UpdateVersion(ctx, v.ID, &score, nil); err != nil {
			slog.Warn("failed to backfill version score", "version", v.ID, "error", err)
		} else {
			v.Score = &score
		}
	}

	return &models.ReEvaluationResult{
		Evaluations: results,
		Summary:     fmt.Sprintf("총 %d건 재평가 완료", len(results)),
	}, nil
}

func (s *Service) deriveRationale(ctx context.Context, evaluationIDs []string) string {
	if len(evaluationIDs) > 0 {
		evals, err := s.evaluator.ByIDs(ctx, evaluationIDs)
		if err == nil {
			return deriveRationale(evals)
		}
		slog.Warn("failed to load requested evaluations, using recent history", "error", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return deriveRationale(s.recent)
}

// deriveRationale names up to three violated guidelines from the most recent evaluation that has any.
func deriveRationale(evaluations []models.EvaluationResult) string {
	if len(evaluations) == 0 {
		return rationaleNoData
	}
	for i := len(evaluations) - 1; i >= 0; i-- {
		if violated := evaluations[i].Violations(); len(violated) > 0 {
			if len(violated) > maxViolations {
				violated = violated[:maxViolations]
			}
			return rationaleViolate + strings.Join(violated, ", ")
		}
	}
	return rationaleStable
}

func (s *Service) rewrite(ctx context.Context, current, rationale string, targetScore *float64) string {
	target := ""
	if targetScore != nil {
		target = fmt.Sprintf("\n목표 점수: %.2f", *targetScore)
	}

	user, err := prompt.Render(prompt.RewriteTemplate, map[string]string{
		"current":   current,
		"rationale": rationale,
		"target":    target,
	})
	if err != nil {
		slog.Error("render rewrite prompt", "error", err)
		return applyFallback(current, rationale)
	}

	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{
		Provider: s.provider,
		Model:    s.model,
		Messages: []llm.Message{
			{Role: "system", Content: prompt.RewriteSystemMessage},
			{Role: "user", Content: user},
		},
		Temperature: llm.Float(rewriteTemp),
	})
	if err == nil {
		if content := strings.TrimSpace(resp.Content); content != "" {
			return content
		}
		err = errors.New("empty rewrite")
	}

	slog.Warn("prompt rewrite failed, applying auto-adjustments", "error", err)
	metrics.ImproverFallbacksTotal.Inc()
	return applyFallback(current, rationale)
}

// applyFallback appends the rationale under a single auto-adjustments header.
func applyFallback(current, rationale string) string {
	if strings.Contains(current, autoHeader) {
		return current + "\n- " + rationale
	}
	return current + "\n\n" + autoHeader + "\n- " + rationale
}

func meanOverall(results []models.EvaluationResult) float64 {
	var sum float64
	for _, r := range results {
		sum += r.Scores.Overall
	}
	return reference.Round4(sum / float64(len(results)))
}

package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/promptcompliance/internal/compliance"
	"github.com/nikhilbhutani/promptcompliance/internal/metrics"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/reference"
)

const (
	// HistorySize is how many persisted evaluations the history sink receives after each write.
	HistorySize = 50

	DefaultRecentLimit = 10
	MaxRecentLimit     = 50

	noteNoReference  = "Reference dataset unavailable or empty"
	noteNoGuidelines = "Guideline adherence skipped (no guidelines provided)"
)

type ReferenceMatcher interface {
	Match(query string) *models.ReferenceRecord
}

type Judge interface {
	Analyze(ctx context.Context, guidelines []string, userMessage, response string, opts compliance.Options) *models.ComplianceAnalysis
}

// HistorySink receives the latest evaluations, oldest first.
type HistorySink interface {
	RecordEvaluations(evaluations []models.EvaluationResult)
}

type Service struct {
	matcher ReferenceMatcher
	judge   Judge
	repo    Repository

	mu   sync.Mutex
	sink HistorySink
	now  func() time.Time
}

func NewService(matcher ReferenceMatcher, judge Judge, repo Repository) *Service {
	return &Service{matcher: matcher, judge: judge, repo: repo, now: time.Now}
}

// SetHistorySink registers the component notified after every persisted evaluation.
func (s *Service) SetHistorySink(sink HistorySink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Evaluate scores a response, persists the result and notifies the history sink.
func (s *Service) Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.EvaluationResult, error) {
	ref := s.matcher.Match(req.UserMessage)
	preference, matched := reference.Score(req.ModelResponse, ref)

	adherence := 1.0
	var guidelineResults []models.GuidelineCompliance
	if len(req.Guidelines) > 0 {
		analysis := s.judge.Analyze(ctx, req.Guidelines, req.UserMessage, req.ModelResponse, compliance.Options{
			Provider: req.LLMProvider,
			Model:    req.ModelName,
		})
		guidelineResults = analysis.GuidelineResults
		adherence = analysis.OverallScore / 100
	}

	result := &models.EvaluationResult{
		EvaluationID:  uuid.NewString(),
		PromptVersion: req.PromptVersion,
		Scores: models.EvaluationScores{
			PreferenceAlignment: reference.Round4(preference),
			GuidelineAdherence:  reference.Round4(adherence),
			Overall:             reference.Round4((preference + adherence) / 2),
		},
		MatchedReference: matched,
		GuidelineResults: guidelineResults,
		Notes:            buildNotes(ref == nil, len(req.Guidelines) == 0),
		Metadata:         req.Metadata,
		CreatedAt:        s.now().UTC(),
	}

	s.mu.Lock()
	err := s.repo.Insert(ctx, result, req)
	sink := s.sink
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("persist evaluation: %w", err)
	}

	metrics.EvaluationsTotal.Inc()
	metrics.EvaluationOverallScore.Observe(result.Scores.Overall)
	slog.Info("evaluation stored",
		"evaluation_id", result.EvaluationID,
		"overall", result.Scores.Overall,
		"guidelines", len(req.Guidelines),
	)

	if sink != nil {
		s.notify(ctx, sink)
	}
	return result, nil
}

// Recent returns up to limit evaluations, newest first. Limits outside 1..50 are clamped.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.EvaluationResult, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	results, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent evaluations: %w", err)
	}
	return results, nil
}

// ByIDs loads specific evaluations, oldest first.
func (s *Service) ByIDs(ctx context.Context, ids []string) ([]models.EvaluationResult, error) {
	return s.repo.ByIDs(ctx, ids)
}

func (s *Service) notify(ctx context.Context, sink HistorySink) {
	recent, err := s.repo.Recent(ctx, HistorySize)
	if err != nil {
		slog.Warn("failed to load evaluation history", "error", err)
		return
	}
	slices.Reverse(recent)
	sink.RecordEvaluations(recent)
}

func buildNotes(noReference, noGuidelines bool) *string {
	var notes []string
	if noReference {
		notes = append(notes, noteNoReference)
	}
	if noGuidelines {
		notes = append(notes, noteNoGuidelines)
	}
	if len(notes) == 0 {
		return nil
	}
	joined := strings.Join(notes, "; ")
	return &joined
}

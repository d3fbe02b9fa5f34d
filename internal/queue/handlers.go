package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/prompt"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{
		mux: asynq.NewServeMux(),
	}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

type Reevaluator interface {
	Reevaluate(ctx context.Context, versionID string) (*models.ReEvaluationResult, error)
}

// ReevaluateWorker replays the scenario suite for the version named in the task payload.
type ReevaluateWorker struct {
	svc Reevaluator
}

func NewReevaluateWorker(svc Reevaluator) *ReevaluateWorker {
	return &ReevaluateWorker{svc: svc}
}

func (w *ReevaluateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload PromptReevaluatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.VersionID == "" {
		return fmt.Errorf("missing version_id: %w", asynq.SkipRetry)
	}

	slog.Info("re-evaluating prompt version", "version", payload.VersionID)

	res, err := w.svc.Reevaluate(ctx, payload.VersionID)
	if errors.Is(err, prompt.ErrNotFound) {
		return fmt.Errorf("version %s: %v: %w", payload.VersionID, err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("re-evaluate %s: %w", payload.VersionID, err)
	}

	slog.Info("re-evaluation complete", "version", payload.VersionID, "summary", res.Summary)
	return nil
}

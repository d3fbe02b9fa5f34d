package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/prompt"
)

type PromptService interface {
	History(ctx context.Context) (*models.PromptHistoryResponse, error)
	Improve(ctx context.Context, req models.PromptImproveRequest) (*models.PromptImproveResponse, error)
	Reevaluate(ctx context.Context, versionID string) (*models.ReEvaluationResult, error)
}

type VersionLookup interface {
	Version(ctx context.Context, id string) (*models.PromptVersion, error)
}

type ReevaluationQueue interface {
	EnqueueReevaluate(versionID string) (string, error)
}

type PromptHandler struct {
	svc      PromptService
	versions VersionLookup
	queue    ReevaluationQueue
}

// NewPromptHandler wires the prompt routes. A nil queue makes re-evaluation run inline.
func NewPromptHandler(svc PromptService, versions VersionLookup, queue ReevaluationQueue) *PromptHandler {
	return &PromptHandler{svc: svc, versions: versions, queue: queue}
}

func (h *PromptHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *PromptHandler) Improve(w http.ResponseWriter, r *http.Request) {
	var req models.PromptImproveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.svc.Improve(r.Context(), req)
	if errors.Is(err, prompt.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no current prompt version")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *PromptHandler) Reevaluate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.versions.Version(r.Context(), id); err != nil {
		if errors.Is(err, prompt.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prompt version not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.queue == nil {
		result, err := h.svc.Reevaluate(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	taskID, err := h.queue.EnqueueReevaluate(id)
	if err != nil {
		slog.Error("failed to enqueue re-evaluation", "version", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "version": id})
}

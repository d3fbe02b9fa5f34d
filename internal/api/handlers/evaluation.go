package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/promptcompliance/internal/evaluation"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

type EvaluationService interface {
	Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.EvaluationResult, error)
	Recent(ctx context.Context, limit int) ([]models.EvaluationResult, error)
}

type EvaluationHandler struct {
	svc EvaluationService
}

func NewEvaluationHandler(svc EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{svc: svc}
}

func (h *EvaluationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req models.EvaluationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkProvider(req.LLMProvider); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Evaluate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *EvaluationHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := evaluation.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || validate.Var(n, "gte=1,lte=50") != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 50")
			return
		}
		limit = n
	}

	results, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, results)
}

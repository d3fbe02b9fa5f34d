package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/promptcompliance/internal/compliance"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

type AnalysisLookup interface {
	Analysis(ctx context.Context, id string) (*models.ComplianceAnalysis, error)
}

type ComplianceHandler struct {
	analyses AnalysisLookup
}

func NewComplianceHandler(analyses AnalysisLookup) *ComplianceHandler {
	return &ComplianceHandler{analyses: analyses}
}

func (h *ComplianceHandler) Get(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.analyses.Analysis(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, compliance.ErrAnalysisNotFound) {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

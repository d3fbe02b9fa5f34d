package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/nikhilbhutani/promptcompliance/internal/compliance"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/rag"
)

type ChatService interface {
	Send(ctx context.Context, req models.ChatRequest) *models.ChatResponse
}

type DocumentIngester interface {
	Ingest(ctx context.Context, content string, metadata map[string]string) (int, error)
}

type GuidelineExtractor interface {
	ExtractGuidelines(ctx context.Context, systemPrompt string, opts compliance.Options) []string
}

type extractRequest struct {
	SystemPrompt string `json:"system_prompt"`
	LLMProvider  string `json:"llm_provider,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
}

type ChatHandler struct {
	chat      ChatService
	docs      DocumentIngester
	extractor GuidelineExtractor
}

func NewChatHandler(chat ChatService, docs DocumentIngester, extractor GuidelineExtractor) *ChatHandler {
	return &ChatHandler{chat: chat, docs: docs, extractor: extractor}
}

func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkProvider(req.LLMProvider); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.chat.Send(r.Context(), req))
}

func (h *ChatHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	var req models.DocumentUpload
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.docs.Ingest(r.Context(), req.Content, req.Metadata)
	if errors.Is(err, rag.ErrEmptyDocument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Document uploaded successfully",
		"chunks_added": n,
	})
}

func (h *ChatHandler) ExtractGuidelines(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SystemPrompt == "" {
		writeError(w, http.StatusBadRequest, "system_prompt is required")
		return
	}
	if err := checkProvider(req.LLMProvider); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	guidelines := h.extractor.ExtractGuidelines(r.Context(), req.SystemPrompt, compliance.Options{
		Provider: req.LLMProvider,
		Model:    req.ModelName,
	})
	writeJSON(w, http.StatusOK, map[string][]string{"guidelines": guidelines})
}

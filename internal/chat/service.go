package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/promptcompliance/internal/compliance"
	"github.com/nikhilbhutani/promptcompliance/internal/llm"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/prompt"
)

const (
	contextSize = 3
	noContext   = "No relevant context found."
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

type Judge interface {
	Analyze(ctx context.Context, guidelines []string, userMessage, response string, opts compliance.Options) *models.ComplianceAnalysis
}

// Service answers a chat message from retrieved context and records a compliance analysis of the answer.
type Service struct {
	retriever Retriever
	gateway   llm.Gateway
	judge     Judge
}

func NewService(retriever Retriever, gw llm.Gateway, judge Judge) *Service {
	return &Service{retriever: retriever, gateway: gw, judge: judge}
}

func (s *Service) Send(ctx context.Context, req models.ChatRequest) *models.ChatResponse {
	contextUsed, err := s.retriever.Retrieve(ctx, req.Message, contextSize)
	if err != nil {
		slog.Warn("context retrieval failed, answering without context", "error", err)
		contextUsed = nil
	}
	if contextUsed == nil {
		contextUsed = []string{}
	}

	response := s.respond(ctx, req, contextUsed)

	analysis := s.judge.Analyze(ctx, req.SystemPrompt.Guidelines, req.Message, response, compliance.Options{
		Provider: req.LLMProvider,
		Model:    req.ModelName,
	})

	return &models.ChatResponse{
		Response:     response,
		ContextUsed:  contextUsed,
		ComplianceID: analysis.ComplianceID,
	}
}

// respond never fails: a chat error becomes the reply text so the exchange can still be analyzed.
func (s *Service) respond(ctx context.Context, req models.ChatRequest, contextUsed []string) string {
	contextStr := noContext
	if len(contextUsed) > 0 {
		contextStr = strings.Join(contextUsed, "\n\n")
	}

	system, err := prompt.Render(prompt.ChatSystemTemplate, map[string]string{
		"system_prompt": req.SystemPrompt.Content,
		"context":       contextStr,
	})
	if err != nil {
		return "Error generating response: " + err.Error()
	}

	messages := make([]llm.Message, 0, len(req.ConversationHistory)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, m := range req.ConversationHistory {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{
		Provider: req.LLMProvider,
		Model:    req.ModelName,
		Messages: messages,
	})
	if err != nil {
		slog.Error("chat completion failed", "error", err)
		return "Error generating response: " + err.Error()
	}
	return resp.Content
}

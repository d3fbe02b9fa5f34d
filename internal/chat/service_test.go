package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptcompliance/internal/compliance"
	"github.com/nikhilbhutani/promptcompliance/internal/llm"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

type stubRetriever struct {
	docs []string
	err  error
	k    int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, k int) ([]string, error) {
	s.k = k
	return s.docs, s.err
}

type stubGateway struct {
	reply string
	err   error
	req   llm.ChatRequest
}

func (g *stubGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.req = req
	if g.err != nil {
		return nil, g.err
	}
	return &llm.ChatResponse{Content: g.reply}, nil
}

func (g *stubGateway) Embed(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, errors.New("not used")
}
func (g *stubGateway) Provider(string) (llm.Provider, error) { return nil, nil }
func (g *stubGateway) DefaultProvider() string               { return llm.ProviderOllama }

type stubJudge struct {
	response   string
	guidelines []string
	opts       compliance.Options
}

func (j *stubJudge) Analyze(_ context.Context, guidelines []string, _, response string, opts compliance.Options) *models.ComplianceAnalysis {
	j.response = response
	j.guidelines = guidelines
	j.opts = opts
	return &models.ComplianceAnalysis{ComplianceID: "c-1"}
}

func chatRequest() models.ChatRequest {
	return models.ChatRequest{
		Message:      "환불은 얼마나 걸리나요?",
		SystemPrompt: models.SystemPrompt{Content: "You are a support agent.", Guidelines: []string{"Respond in Korean"}},
		ConversationHistory: []models.ChatMessage{
			{Role: "user", Content: "안녕하세요"},
			{Role: "assistant", Content: "안녕하세요!"},
		},
		LLMProvider: llm.ProviderOpenAI,
		ModelName:   "gpt-4o-mini",
	}
}

func TestSend_BuildsMessagesAndAnalyzes(t *testing.T) {
	retriever := &stubRetriever{docs: []string{"refunds take 5 days", "contact support"}}
	gw := &stubGateway{reply: "5일 걸립니다."}
	judge := &stubJudge{}

	resp := NewService(retriever, gw, judge).Send(context.Background(), chatRequest())

	assert.Equal(t, "5일 걸립니다.", resp.Response)
	assert.Equal(t, []string{"refunds take 5 days", "contact support"}, resp.ContextUsed)
	assert.Equal(t, "c-1", resp.ComplianceID)
	assert.Equal(t, contextSize, retriever.k)

	require.Len(t, gw.req.Messages, 4)
	assert.Equal(t, "You are a support agent.\n\nContext from knowledge base:\nrefunds take 5 days\n\ncontact support", gw.req.Messages[0].Content)
	assert.Equal(t, "assistant", gw.req.Messages[2].Role)
	assert.Equal(t, "환불은 얼마나 걸리나요?", gw.req.Messages[3].Content)
	assert.Equal(t, llm.ProviderOpenAI, gw.req.Provider)

	assert.Equal(t, "5일 걸립니다.", judge.response)
	assert.Equal(t, []string{"Respond in Korean"}, judge.guidelines)
	assert.Equal(t, "gpt-4o-mini", judge.opts.Model)
}

func TestSend_NoContext(t *testing.T) {
	gw := &stubGateway{reply: "ok"}

	resp := NewService(&stubRetriever{err: errors.New("no embeddings")}, gw, &stubJudge{}).Send(context.Background(), chatRequest())

	assert.Empty(t, resp.ContextUsed)
	assert.NotNil(t, resp.ContextUsed)
	assert.Contains(t, gw.req.Messages[0].Content, noContext)
}

func TestSend_ChatFailureBecomesReply(t *testing.T) {
	judge := &stubJudge{}

	resp := NewService(&stubRetriever{}, &stubGateway{err: errors.New("quota exceeded")}, judge).Send(context.Background(), chatRequest())

	assert.Equal(t, "Error generating response: quota exceeded", resp.Response)
	assert.Equal(t, resp.Response, judge.response)
	assert.Equal(t, "c-1", resp.ComplianceID)
}

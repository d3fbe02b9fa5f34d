package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/promptcompliance/internal/compliance"
	"github.com/nikhilbhutani/promptcompliance/internal/models"
	"github.com/nikhilbhutani/promptcompliance/internal/prompt"
	"github.com/nikhilbhutani/promptcompliance/internal/rag"
)

type fakeEvaluations struct {
	req   models.EvaluationRequest
	limit int
	err   error
}

func (f *fakeEvaluations) Evaluate(_ context.Context, req models.EvaluationRequest) (*models.EvaluationResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.EvaluationResult{EvaluationID: "e-1", Scores: models.EvaluationScores{Overall: 0.75}}, nil
}

func (f *fakeEvaluations) Recent(_ context.Context, limit int) ([]models.EvaluationResult, error) {
	f.limit = limit
	return []models.EvaluationResult{}, f.err
}

type fakePrompts struct {
	improveErr error
	reevalID   string
}

func (f *fakePrompts) History(context.Context) (*models.PromptHistoryResponse, error) {
	id := "version_01"
	return &models.PromptHistoryResponse{CurrentVersion: &id, Versions: []models.PromptVersion{{ID: id}}}, nil
}

func (f *fakePrompts) Improve(_ context.Context, req models.PromptImproveRequest) (*models.PromptImproveResponse, error) {
	if f.improveErr != nil {
		return nil, f.improveErr
	}
	return &models.PromptImproveResponse{NewVersion: models.PromptVersion{ID: "version_02"}, Message: "ok"}, nil
}

func (f *fakePrompts) Reevaluate(_ context.Context, id string) (*models.ReEvaluationResult, error) {
	f.reevalID = id
	return &models.ReEvaluationResult{Summary: "총 0건 재평가 완료"}, nil
}

type fakeVersions struct{}

func (fakeVersions) Version(_ context.Context, id string) (*models.PromptVersion, error) {
	if id != "version_01" {
		return nil, prompt.ErrNotFound
	}
	return &models.PromptVersion{ID: id}, nil
}

type fakeQueue struct{ ids []string }

func (q *fakeQueue) EnqueueReevaluate(id string) (string, error) {
	q.ids = append(q.ids, id)
	return "task-1", nil
}

type fakeAnalyses struct{}

func (fakeAnalyses) Analysis(_ context.Context, id string) (*models.ComplianceAnalysis, error) {
	if id == "known" {
		return &models.ComplianceAnalysis{ComplianceID: id, OverallScore: 100}, nil
	}
	return nil, fmt.Errorf("lookup %s: %w", id, compliance.ErrAnalysisNotFound)
}

type fakeChat struct {
	got     models.ChatRequest
	ingest  error
	extract []string
}

func (f *fakeChat) Send(_ context.Context, req models.ChatRequest) *models.ChatResponse {
	f.got = req
	return &models.ChatResponse{Response: "hi", ContextUsed: []string{}, ComplianceID: "c-1"}
}

func (f *fakeChat) Ingest(_ context.Context, content string, _ map[string]string) (int, error) {
	if f.ingest != nil {
		return 0, f.ingest
	}
	return (len([]rune(content)) + 499) / 500, nil
}

func (f *fakeChat) ExtractGuidelines(context.Context, string, compliance.Options) []string {
	return f.extract
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestEvaluationHandler_Run(t *testing.T) {
	svc := &fakeEvaluations{}
	r := chi.NewRouter()
	r.Post("/run", NewEvaluationHandler(svc).Run)

	rec := do(t, r, http.MethodPost, "/run", `{"user_message":"Hi","model_response":"Hello!","guidelines":["Respond in Chinese"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"evaluation_id":"e-1"`)
	assert.Equal(t, []string{"Respond in Chinese"}, svc.req.Guidelines)

	rec = do(t, r, http.MethodPost, "/run", `{"user_message":"Hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request: model_response failed required", errorOf(t, rec))

	rec = do(t, r, http.MethodPost, "/run", `{"user_message":"Hi","model_response":"x","llm_provider":"gemini"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = errors.New("persist evaluation: connection refused")
	rec = do(t, r, http.MethodPost, "/run", `{"user_message":"Hi","model_response":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "persist evaluation: connection refused", errorOf(t, rec))
}

func TestEvaluationHandler_Recent(t *testing.T) {
	svc := &fakeEvaluations{}
	r := chi.NewRouter()
	r.Get("/recent", NewEvaluationHandler(svc).Recent)

	rec := do(t, r, http.MethodGet, "/recent", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, svc.limit)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/recent?limit=50", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, svc.limit)

	for _, bad := range []string{"0", "51", "abc", "-3"} {
		rec = do(t, r, http.MethodGet, "/recent?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestPromptHandler(t *testing.T) {
	svc := &fakePrompts{}
	queue := &fakeQueue{}
	h := NewPromptHandler(svc, fakeVersions{}, queue)
	r := chi.NewRouter()
	r.Get("/history", h.History)
	r.Post("/improve", h.Improve)
	r.Post("/versions/{id}/reevaluate", h.Reevaluate)

	rec := do(t, r, http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_version":"version_01"`)

	rec = do(t, r, http.MethodPost, "/improve", `{"rationale":"be brief"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "version_02")

	rec = do(t, r, http.MethodPost, "/improve", `{"target_score":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.improveErr = fmt.Errorf("load current prompt: %w", prompt.ErrNotFound)
	rec = do(t, r, http.MethodPost, "/improve", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodPost, "/versions/version_01/reevaluate", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"version_01"}, queue.ids)

	rec = do(t, r, http.MethodPost, "/versions/version_99/reevaluate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromptHandler_ReevaluateInline(t *testing.T) {
	svc := &fakePrompts{}
	r := chi.NewRouter()
	r.Post("/versions/{id}/reevaluate", NewPromptHandler(svc, fakeVersions{}, nil).Reevaluate)

	rec := do(t, r, http.MethodPost, "/versions/version_01/reevaluate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "version_01", svc.reevalID)
	assert.Contains(t, rec.Body.String(), "재평가 완료")
}

func TestComplianceHandler_Get(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/{id}", NewComplianceHandler(fakeAnalyses{}).Get)

	rec := do(t, r, http.MethodGet, "/known", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"compliance_id":"known"`)

	rec = do(t, r, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Analysis not found", errorOf(t, rec))
}

func TestChatHandler(t *testing.T) {
	fake := &fakeChat{extract: []string{"Respond in Korean"}}
	h := NewChatHandler(fake, fake, fake)
	r := chi.NewRouter()
	r.Post("/message", h.Message)
	r.Post("/upload-document", h.UploadDocument)
	r.Post("/extract-guidelines", h.ExtractGuidelines)

	rec := do(t, r, http.MethodPost, "/message", `{"message":"안녕","system_prompt":{"content":"Be kind","guidelines":["Respond in Korean"]},"conversation_history":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"hi","context_used":[],"compliance_id":"c-1"}`, rec.Body.String())
	assert.Equal(t, "Be kind", fake.got.SystemPrompt.Content)

	rec = do(t, r, http.MethodPost, "/message", `{"message":"hi","conversation_history":[{"role":"system","content":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/upload-document", fmt.Sprintf(`{"content":%q}`, strings.Repeat("a", 1001)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Document uploaded successfully","chunks_added":3}`, rec.Body.String())

	fake.ingest = rag.ErrEmptyDocument
	rec = do(t, r, http.MethodPost, "/upload-document", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/extract-guidelines", `{"system_prompt":"Always answer in Korean."}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"guidelines":["Respond in Korean"]}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/extract-guidelines", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "system_prompt is required", errorOf(t, rec))
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
		"skipped":  nil,
	})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
	assert.NotContains(t, rec.Body.String(), "skipped")
}

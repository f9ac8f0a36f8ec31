package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-notesum/internal/domain/note"
	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/config"
	"github.com/yanqian/ai-notesum/internal/infra/docstore"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

func TestRouter_SummarizeStreamSuccess(t *testing.T) {
	svc := &stubSummarizer{
		summarizeFn: func(ctx context.Context, req summarizer.Request) (summarizer.Result, error) {
			require.Equal(t, "stream me please", req.Editor.Selection())
			require.Equal(t, summarizer.PlacementBelow, req.Placement)
			req.Notifier.Notify("Generating summary...")
			req.Editor.SetCursor(req.Editor.SelectionEnd())
			require.NoError(t, req.Editor.ReplaceSelection("\nshort"))
			return summarizer.Result{RunID: 7, Summary: "short", State: summarizer.StateDone}, nil
		},
	}
	server, _ := newRouterUnderTest(t, svc, "")

	recorder := performRequest(server, http.MethodPost, "/api/v1/summaries/stream", `{"text":"stream me please","placement":"below"}`, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	require.NotEmpty(t, recorder.Header().Get(requestIDHeader))

	frames := decodeFrames(t, recorder.Body.String())
	require.Len(t, frames, 3)
	require.Equal(t, frameNotice, frames[0]["type"])
	require.Equal(t, "Generating summary...", frames[0]["message"])
	require.Equal(t, frameEdit, frames[1]["type"])
	require.Equal(t, float64(16), frames[1]["offset"])
	require.Equal(t, "\nshort", frames[1]["text"])
	require.Equal(t, frameDocument, frames[2]["type"])
	require.Equal(t, "stream me please\nshort", frames[2]["text"])
}

func TestRouter_SummarizeStreamInvalidJSON(t *testing.T) {
	server, _ := newRouterUnderTest(t, &stubSummarizer{}, "")

	recorder := performRequest(server, http.MethodPost, "/api/v1/summaries/stream", `{"text":123}`, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
}

func TestRouter_SummarizeStreamInvalidInput(t *testing.T) {
	svc := &stubSummarizer{
		summarizeFn: func(ctx context.Context, req summarizer.Request) (summarizer.Result, error) {
			err := apperrors.InvalidInput("Selected text is too short! (>30 words)")
			req.Notifier.NotifyError(err)
			return summarizer.Result{}, err
		},
	}
	server, _ := newRouterUnderTest(t, svc, "")

	recorder := performRequest(server, http.MethodPost, "/api/v1/summaries/stream", `{"text":"tiny"}`, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, apperrors.CodeInvalidInput, errBody["error"]["code"])
	require.Equal(t, "Selected text is too short! (>30 words)", errBody["error"]["message"])
}

func TestRouter_SummarizeStreamUnknownPlacement(t *testing.T) {
	server, _ := newRouterUnderTest(t, &stubSummarizer{}, "")
	recorder := performRequest(server, http.MethodPost, "/api/v1/summaries/stream", `{"text":"x","placement":"sideways"}`, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_SummarizeStreamTransportErrorAfterOutput(t *testing.T) {
	svc := &stubSummarizer{
		summarizeFn: func(ctx context.Context, req summarizer.Request) (summarizer.Result, error) {
			req.Notifier.Notify("Generating summary...")
			return summarizer.Result{State: summarizer.StateFailed}, apperrors.Wrap(apperrors.CodeTransportError, "completion request failed", nil)
		},
	}
	server, _ := newRouterUnderTest(t, svc, "")

	recorder := performRequest(server, http.MethodPost, "/api/v1/summaries/stream", `{"text":"anything"}`, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	frames := decodeFrames(t, recorder.Body.String())
	require.Len(t, frames, 2)
	require.Equal(t, frameError, frames[1]["type"])
	require.Equal(t, apperrors.CodeTransportError, frames[1]["code"])
}

func TestRouter_Documents(t *testing.T) {
	svc := &stubSummarizer{
		summarizeFn: func(ctx context.Context, req summarizer.Request) (summarizer.Result, error) {
			require.Equal(t, "notes", req.DocumentID)
			require.Equal(t, "middle", req.Editor.Selection())
			require.NoError(t, req.Editor.ReplaceSelection("MID"))
			return summarizer.Result{State: summarizer.StateDone}, nil
		},
	}
	server, docs := newRouterUnderTest(t, svc, "")

	recorder := performRequest(server, http.MethodGet, "/api/v1/documents/notes", "", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = performRequest(server, http.MethodPut, "/api/v1/documents/notes", "start middle end", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = performRequest(server, http.MethodPost, "/api/v1/documents/notes/summaries", `{"from":6,"to":12}`, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	frames := decodeFrames(t, recorder.Body.String())
	require.Equal(t, frameDocument, frames[len(frames)-1]["type"])

	stored, err := docs.Get(context.Background(), "notes")
	require.NoError(t, err)
	require.Equal(t, "start MID end", stored.Body)

	recorder = performRequest(server, http.MethodGet, "/api/v1/documents/notes", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var got note.Note
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, "start MID end", got.Body)

	recorder = performRequest(server, http.MethodPost, "/api/v1/documents/notes/summaries", `{"from":5,"to":99}`, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_AbortedRunIsNotPersisted(t *testing.T) {
	svc := &stubSummarizer{
		summarizeFn: func(ctx context.Context, req summarizer.Request) (summarizer.Result, error) {
			return summarizer.Result{State: summarizer.StateAborted}, nil
		},
	}
	server, docs := newRouterUnderTest(t, svc, "")
	require.NoError(t, docs.Put(context.Background(), note.Note{ID: "keep", Body: "original"}))

	recorder := performRequest(server, http.MethodPost, "/api/v1/documents/keep/summaries", `{}`, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	stored, err := docs.Get(context.Background(), "keep")
	require.NoError(t, err)
	require.Equal(t, "original", stored.Body)
}

func TestRouter_ModelsAndRuns(t *testing.T) {
	svc := &stubSummarizer{
		runs: []summarizer.RunRecord{{RunID: 3, State: summarizer.StateDone}},
	}
	server, _ := newRouterUnderTest(t, svc, "")

	recorder := performRequest(server, http.MethodGet, "/api/v1/models", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"models":["gpt-4","gpt-4o"],"selected":"gpt-4"}`, recorder.Body.String())

	recorder = performRequest(server, http.MethodGet, "/api/v1/runs?limit=5", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 5, svc.lastLimit)
	require.Contains(t, recorder.Body.String(), `"runId":3`)

	recorder = performRequest(server, http.MethodGet, "/api/v1/runs?limit=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_BearerAuth(t *testing.T) {
	server, _ := newRouterUnderTest(t, &stubSummarizer{}, "s3cret")

	recorder := performRequest(server, http.MethodGet, "/api/v1/models", "", nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	bad := signToken(t, "other-secret")
	recorder = performRequest(server, http.MethodGet, "/api/v1/models", "", map[string]string{"Authorization": "Bearer " + bad})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	good := signToken(t, "s3cret")
	recorder = performRequest(server, http.MethodGet, "/api/v1/models", "", map[string]string{"Authorization": "Bearer " + good})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = performRequest(server, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_RequestIDPropagates(t *testing.T) {
	server, _ := newRouterUnderTest(t, &stubSummarizer{}, "")
	recorder := performRequest(server, http.MethodGet, "/healthz", "", map[string]string{requestIDHeader: "abc-123"})
	require.Equal(t, "abc-123", recorder.Header().Get(requestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(corsMiddleware([]string{"https://notes.example.com"}))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		method string
		origin string
		status int
		allow  string
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "https://notes.example.com", status: http.StatusOK, allow: "https://notes.example.com"},
		{name: "other origin", method: http.MethodGet, origin: "https://evil.example.com", status: http.StatusOK, allow: ""},
		{name: "preflight", method: http.MethodOptions, origin: "https://notes.example.com", status: http.StatusNoContent, allow: "https://notes.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.allow, rec.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, requestIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))
		})
	}

	server, _ := newRouterUnderTest(t, &stubSummarizer{}, "")
	recorder := performRequest(server, http.MethodGet, "/healthz", "", map[string]string{"Origin": "https://any.example.com"})
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "editor-plugin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func performRequest(server *http.Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, svc summarizer.Service, secret string) (*http.Server, *docstore.MemoryStore) {
	t.Helper()
	docs := docstore.NewMemoryStore()
	handler := NewHandler(svc, docs, staticCatalog{"gpt-4", "gpt-4o"}, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Auth: config.AuthConfig{JWTSecret: secret},
	}
	return NewRouter(cfg, handler), docs
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type staticCatalog []string

func (s staticCatalog) Models(context.Context) []string { return s }

type stubSummarizer struct {
	summarizeFn func(ctx context.Context, req summarizer.Request) (summarizer.Result, error)
	runs        []summarizer.RunRecord
	lastLimit   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, req summarizer.Request) (summarizer.Result, error) {
	if s.summarizeFn != nil {
		return s.summarizeFn(ctx, req)
	}
	return summarizer.Result{State: summarizer.StateDone}, nil
}

func (s *stubSummarizer) Runs(_ context.Context, limit int) ([]summarizer.RunRecord, error) {
	s.lastLimit = limit
	return s.runs, nil
}

func (s *stubSummarizer) Model() string   { return "gpt-4" }
func (s *stubSummarizer) SetModel(string) {}
func (s *stubSummarizer) Cancel()         {}

func decodeFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(body), "\n\n") {
		require.True(t, strings.HasPrefix(raw, "data: "), raw)
		var f map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(raw, "data: ")), &f))
		frames = append(frames, f)
	}
	return frames
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Frame types sent on summary streams.
const (
	frameEdit     = "edit"
	frameNotice   = "notice"
	frameError    = "error"
	frameDocument = "document"
)

type frame struct {
	Type    string `json:"type"`
	Offset  *int   `json:"offset,omitempty"`
	Removed *int   `json:"removed,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// sseStream writes frames as server-sent events. Headers are sent with the
// first frame so errors found before any output still get a JSON response.
type sseStream struct {
	mu      sync.Mutex
	c       *gin.Context
	started bool
	logger  *slog.Logger
}

func newSSEStream(c *gin.Context, logger *slog.Logger) *sseStream {
	return &sseStream{c: c, logger: logger}
}

func (s *sseStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *sseStream) send(f frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("marshal frame failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		headers := s.c.Writer.Header()
		headers.Set("Content-Type", "text/event-stream")
		headers.Set("Cache-Control", "no-cache")
		headers.Set("Connection", "keep-alive")
		s.c.Status(http.StatusOK)
		s.started = true
	}
	s.c.Writer.Write([]byte("data: "))
	s.c.Writer.Write(payload)
	s.c.Writer.Write([]byte("\n\n"))
	if flusher, ok := s.c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

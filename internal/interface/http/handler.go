package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/ai-notesum/internal/domain/note"
	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/document"
	"github.com/yanqian/ai-notesum/internal/infra/notify"
	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

const maxDocumentBytes = 4 << 20

// ModelCatalog lists the models the account can use.
type ModelCatalog interface {
	Models(ctx context.Context) []string
}

// Handler wires the HTTP transport to domain services.
type Handler struct {
	summarizerSvc summarizer.Service
	docs          note.Repository
	models        ModelCatalog
	logger        *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(summarySvc summarizer.Service, docs note.Repository, models ModelCatalog, logger *slog.Logger) *Handler {
	return &Handler{
		summarizerSvc: summarySvc,
		docs:          docs,
		models:        models,
		logger:        logger.With("component", "http.handler"),
	}
}

type summarizeTextRequest struct {
	Text      string `json:"text" binding:"required"`
	Title     string `json:"title"`
	Placement string `json:"placement"`
	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`
}

type summarizeDocumentRequest struct {
	From      *int   `json:"from"`
	To        *int   `json:"to"`
	Placement string `json:"placement"`
	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`
}

// SummarizeStream summarizes posted text in an ephemeral document and
// streams edits using Server-Sent Events.
func (h *Handler) SummarizeStream(c *gin.Context) {
	var req summarizeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	placement, err := summarizer.ParsePlacement(req.Placement)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}

	buf := document.NewBuffer(uuid.NewString(), req.Title, req.Text)
	buf.SelectAll()
	h.stream(c, buf, summarizer.Request{
		DocumentID: buf.ID(),
		Title:      req.Title,
		Placement:  placement,
		Model:      req.Model,
		MaxTokens:  req.MaxTokens,
	}, nil)
}

// SummarizeDocument summarizes a rune range of a stored document, streams
// the edits, and saves the document when the run completes.
func (h *Handler) SummarizeDocument(c *gin.Context) {
	var req summarizeDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	placement, err := summarizer.ParsePlacement(req.Placement)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	stored, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}

	buf := document.NewBuffer(stored.ID, stored.Title, stored.Body)
	from, to := 0, buf.Len()
	if req.From != nil {
		from = *req.From
	}
	if req.To != nil {
		to = *req.To
	}
	if err := buf.Select(from, to); err != nil {
		abortWithError(c, fromAppError(err))
		return
	}

	h.stream(c, buf, summarizer.Request{
		DocumentID: stored.ID,
		Title:      stored.Title,
		Placement:  placement,
		Model:      req.Model,
		MaxTokens:  req.MaxTokens,
	}, func(ctx context.Context) error {
		return h.docs.Put(ctx, note.Note{ID: stored.ID, Title: stored.Title, Body: buf.Text()})
	})
}

func (h *Handler) stream(c *gin.Context, buf *document.Buffer, req summarizer.Request, persist func(context.Context) error) {
	sse := newSSEStream(c, h.logger)
	buf.Subscribe(func(e document.Edit) {
		sse.send(frame{Type: frameEdit, Offset: &e.Offset, Removed: &e.Removed, Text: e.Text})
	})
	req.Editor = buf
	req.Metadata = buf
	req.Notifier = notify.Funcs{OnNotice: func(message string) {
		sse.send(frame{Type: frameNotice, Message: message})
	}}

	h.logger.Info("summary requested", "document_id", req.DocumentID, "placement", req.Placement, "subject", getSubject(c), "request_id", c.GetString(requestIDKey))
	res, err := h.summarizerSvc.Summarize(c.Request.Context(), req)
	if err == nil && res.State == summarizer.StateDone && persist != nil {
		err = persist(context.WithoutCancel(c.Request.Context()))
	}
	if err != nil {
		httpErr := fromAppError(err)
		if !sse.Started() {
			abortWithError(c, httpErr)
			return
		}
		h.logger.Warn("summary stream failed", "code", httpErr.Code, "error", err)
		sse.send(frame{Type: frameError, Code: httpErr.Code, Message: httpErr.Message})
		return
	}
	sse.send(frame{Type: frameDocument, Text: buf.Text(), Payload: res})
}

// PutDocument stores the raw request body as a document.
func (h *Handler) PutDocument(c *gin.Context) {
	id := c.Param("id")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentBytes+1))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if len(body) > maxDocumentBytes {
		abortWithError(c, NewHTTPError(http.StatusRequestEntityTooLarge, "invalid_request", "document too large", nil))
		return
	}
	title := c.Query("title")
	if title == "" {
		title = id
	}
	doc := note.Note{ID: id, Title: title, Body: string(body)}
	if err := h.docs.Put(c.Request.Context(), doc); err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "title": title, "length": len([]rune(doc.Body))})
}

// GetDocument returns a stored document.
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ListModels returns the selectable models and the configured default.
func (h *Handler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":   h.models.Models(c.Request.Context()),
		"selected": h.summarizerSvc.Model(),
	})
}

// ListRuns returns recent summarization runs.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			abortWithError(c, fromAppError(apperrors.InvalidInput("limit must be a positive integer")))
			return
		}
		limit = min(parsed, 200)
	}
	runs, err := h.summarizerSvc.Runs(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

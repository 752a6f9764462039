package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/agent"
	"teamboard/internal/extract"
	"teamboard/internal/service"
	"teamboard/pkg/logger"
)

const multipartOverhead = 1 << 20

type AssistantHandler struct {
	assistant Assistant
	maxBytes  int64
	logger    *zap.Logger
}

func NewAssistantHandler(assistant Assistant, maxBytes int64, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, maxBytes: maxBytes, logger: logger}
}

type commandRequest struct {
	Message   string           `json:"message"`
	ProjectID string           `json:"projectId"`
	History   []map[string]any `json:"history"`
}

// Command handles POST /api/projects/ai/command. It takes multipart fields
// message, projectId, history (JSON string) and an optional file; a JSON
// body without file is accepted too. Every failure answers with a chat reply.
func (h *AssistantHandler) Command(c *gin.Context) {
	log := logger.WithTrace(c.Request.Context(), h.logger)

	var in service.CommandInput
	if c.ContentType() == gin.MIMEJSON {
		var req commandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.reply(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		in = service.CommandInput{Message: req.Message, ProjectID: req.ProjectID, History: req.History}
	} else {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
		if status, msg := h.parseForm(c); status != 0 {
			h.reply(c, status, msg)
			return
		}
		in = service.CommandInput{
			Message:   c.PostForm("message"),
			ProjectID: c.PostForm("projectId"),
		}
		if raw := c.PostForm("history"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &in.History); err != nil {
				h.reply(c, http.StatusBadRequest, "Invalid history")
				return
			}
		}

		file, status, msg := h.readFile(c)
		if status != 0 {
			h.reply(c, status, msg)
			return
		}
		in.File = file
	}

	log.Info("Assistant command received",
		zap.String("user_id", currentUser(c)),
		zap.Bool("has_file", in.File != nil),
		zap.String("project_id", in.ProjectID),
	)

	res, err := h.assistant.Handle(c.Request.Context(), currentUser(c), in)
	if err != nil {
		kind := service.KindOf(err)
		if kind == service.KindInternal {
			log.Error("Assistant command failed", zap.Error(err))
		} else {
			log.Warn("Assistant command rejected", zap.Error(err))
		}
		h.reply(c, kind.HTTPStatus(), errorMessage(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AssistantHandler) parseForm(c *gin.Context) (int, string) {
	err := c.Request.ParseMultipartForm(h.maxBytes)
	var tooBig *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, http.ErrNotMultipart):
		return 0, ""
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, h.tooLarge()
	default:
		return http.StatusBadRequest, "Invalid form data"
	}
}

// readFile returns the uploaded file, or nil when none was sent.
func (h *AssistantHandler) readFile(c *gin.Context) (*extract.File, int, string) {
	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, 0, ""
	case err != nil:
		return nil, http.StatusBadRequest, "Invalid file upload"
	}
	if fh.Size > h.maxBytes {
		return nil, http.StatusRequestEntityTooLarge, h.tooLarge()
	}

	data, err := readAll(fh)
	if err != nil {
		return nil, http.StatusBadRequest, "Invalid file upload"
	}
	return &extract.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, 0, ""
}

func (h *AssistantHandler) tooLarge() string {
	return fmt.Sprintf("File too large (max %d MB)", h.maxBytes>>20)
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *AssistantHandler) reply(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"reply": msg, "intent": agent.IntentChat})
}

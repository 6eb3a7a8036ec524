package handlers

import (
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"nback-go/internal/engine"
	"nback-go/internal/level"
	"nback-go/internal/models"
	"nback-go/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SessionHandler struct {
	log    *zap.Logger
	runner *services.Runner
}

func NewSessionHandler(log *zap.Logger, runner *services.Runner) *SessionHandler {
	return &SessionHandler{log: log, runner: runner}
}

// respondError maps domain errors onto status codes.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrAlreadyActive), errors.Is(err, engine.ErrNotRunning),
		errors.Is(err, level.ErrSessionActive), errors.Is(err, level.ErrNoSession):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrNotSelfPaced):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (h *SessionHandler) respondState(c *gin.Context, status int) {
	snap, err := h.runner.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(status, snap)
}

// State returns the current game snapshot.
func (h *SessionHandler) State(c *gin.Context) {
	h.respondState(c, http.StatusOK)
}

func (h *SessionHandler) Start(c *gin.Context) {
	if err := h.runner.StartSession(c.Request.Context()); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respondState(c, http.StatusCreated)
}

func (h *SessionHandler) Cancel(c *gin.Context) {
	if err := h.runner.CancelSession(c.Request.Context()); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respondState(c, http.StatusOK)
}

func (h *SessionHandler) Pause(c *gin.Context) {
	if err := h.runner.TogglePause(c.Request.Context()); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respondState(c, http.StatusOK)
}

// Advance skips ahead to the next trial in self-paced modes.
func (h *SessionHandler) Advance(c *gin.Context) {
	if err := h.runner.Advance(c.Request.Context()); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type pressRequest struct {
	Modality string `json:"modality" binding:"required"`
}

type answerRequest struct {
	Key string `json:"key" binding:"required"`
}

type inputResponse struct {
	Accepted bool `json:"accepted"`
}

// Press registers a match response for one modality.
func (h *SessionHandler) Press(c *gin.Context) {
	var req pressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := models.ParseModality(req.Modality)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	accepted, err := h.runner.Press(c.Request.Context(), m)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, inputResponse{Accepted: accepted})
}

// Answer feeds one key of an arithmetic answer: a digit, '-', '.', or
// "Backspace".
func (h *SessionHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := '\b'
	if req.Key != "Backspace" {
		if utf8.RuneCountInString(req.Key) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key must be a single character"})
			return
		}
		key, _ = utf8.DecodeRuneInString(req.Key)
	}
	accepted, err := h.runner.AnswerKey(c.Request.Context(), key)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, inputResponse{Accepted: accepted})
}

type levelRequest struct {
	Level int `json:"level" binding:"required,min=1"`
}

// SetLevel overrides the active mode's level between sessions.
func (h *SessionHandler) SetLevel(c *gin.Context) {
	var req levelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.runner.SetLevel(c.Request.Context(), req.Level); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respondState(c, http.StatusOK)
}

// Events streams engine events as server-sent events until the client
// disconnects or the runner stops.
func (h *SessionHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	events, unsubscribe, err := h.runner.Subscribe(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Kind.String(), ev)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

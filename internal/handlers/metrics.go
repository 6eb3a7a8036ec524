package handlers

import (
	"context"
	"net/http"
	"strconv"

	"nback-go/internal/models"
	"nback-go/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TrialSource is the per-trial detail only the database store keeps.
type TrialSource interface {
	Results(ctx context.Context, user string) ([]models.SessionResult, error)
	Events(ctx context.Context, resultID int) ([]models.TrialEvent, error)
}

// SessionsHandler serves the stored detail of past sessions: database rows
// with their trial events, and the YAML archive.
type SessionsHandler struct {
	log     *zap.Logger
	trials  TrialSource         // nil for the file backend
	archive *repository.Archive // nil when archiving is off
}

func NewSessionsHandler(log *zap.Logger, store repository.HistoryStore, archive *repository.Archive) *SessionsHandler {
	h := &SessionsHandler{log: log, archive: archive}
	if src, ok := store.(TrialSource); ok {
		h.trials = src
	}
	return h
}

func (h *SessionsHandler) List(c *gin.Context) {
	if h.trials == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "per-session detail needs the database backend"})
		return
	}
	rows, err := h.trials.Results(c.Request.Context(), c.GetString(SessionUserKey))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": rows})
}

// Trials returns every trial event of one stored session, provided it
// belongs to the selected user.
func (h *SessionsHandler) Trials(c *gin.Context) {
	if h.trials == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "per-session detail needs the database backend"})
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	ctx := c.Request.Context()
	rows, err := h.trials.Results(ctx, c.GetString(SessionUserKey))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	owned := false
	for _, r := range rows {
		if r.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	events, err := h.trials.Events(ctx, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trials": events})
}

// Archive returns the selected user's archived sessions.
func (h *SessionsHandler) Archive(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session archive is disabled"})
		return
	}
	sessions, err := h.archive.Read(c.GetString(SessionUserKey))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

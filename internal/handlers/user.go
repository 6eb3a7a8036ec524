package handlers

import (
	"errors"
	"net/http"

	"nback-go/internal/repository"
	"nback-go/internal/services"
	"nback-go/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionUserKey is the cookie session key holding the selected profile.
const SessionUserKey = "user"

type UserHandler struct {
	log    *zap.Logger
	runner *services.Runner
	store  repository.HistoryStore
	users  *repository.UserRepository // nil without a database
}

func NewUserHandler(log *zap.Logger, runner *services.Runner, store repository.HistoryStore, users *repository.UserRepository) *UserHandler {
	return &UserHandler{log: log, runner: runner, store: store, users: users}
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// List returns every user with stored history.
func (h *UserHandler) List(c *gin.Context) {
	names, err := h.store.Users(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": names})
}

// Select makes :name the active profile and replays its history.
// Profiles protected by a PIN require it in the body.
func (h *UserHandler) Select(c *gin.Context) {
	name := c.Param("name")
	if !utils.IsValidUserName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user name"})
		return
	}
	var req pinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	if h.users != nil {
		if _, err := h.users.Select(ctx, name, req.PIN); err != nil {
			if errors.Is(err, repository.ErrWrongPIN) {
				h.log.Warn("Rejected profile PIN", zap.String("user", name), zap.String("client_ip", c.ClientIP()))
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			respondError(c, h.log, err)
			return
		}
	}
	if err := h.runner.SelectUser(ctx, name); err != nil {
		respondError(c, h.log, err)
		return
	}

	session := sessions.Default(c)
	session.Set(SessionUserKey, name)
	if err := session.Save(); err != nil {
		h.log.Error("Failed to save session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}

	snap, err := h.runner.Snapshot(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SetPIN sets or, with an empty PIN, removes the protection of the
// profile selected in this browser session.
func (h *UserHandler) SetPIN(c *gin.Context) {
	if h.users == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "profile PINs need the database"})
		return
	}
	name := c.Param("name")
	if c.GetString(SessionUserKey) != name {
		c.JSON(http.StatusForbidden, gin.H{"error": "select this profile first"})
		return
	}
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PIN != "" && !utils.IsValidPIN(req.PIN) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PIN must be 4 to 8 digits"})
		return
	}

	if err := h.users.SetPIN(c.Request.Context(), name, req.PIN); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}
		respondError(c, h.log, err)
		return
	}
	h.log.Info("Profile PIN updated", zap.String("user", name), zap.Bool("protected", req.PIN != ""))
	c.Status(http.StatusNoContent)
}

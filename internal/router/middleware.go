package router

import (
	"net/http"

	"nback-go/internal/handlers"
	"nback-go/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserLoaderMiddleware puts the profile selected in this browser session
// into the context, provided it is still the runner's active profile.
// A session whose profile was switched away elsewhere is cleared.
func UserLoaderMiddleware(log *zap.Logger, runner *services.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		name, ok := session.Get(handlers.SessionUserKey).(string)
		if !ok {
			c.Next()
			return
		}

		active, err := runner.User(c.Request.Context())
		if err != nil || active != name {
			log.Debug("Dropping stale profile selection", zap.String("user", name), zap.String("active", active))
			session.Delete(handlers.SessionUserKey)
			if err := session.Save(); err != nil {
				log.Warn("Failed to save session", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set(handlers.SessionUserKey, name)
		c.Next()
	}
}

// UserRequired rejects requests without a selected profile.
func UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(handlers.SessionUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no profile selected"})
			return
		}
		c.Next()
	}
}

package router

import (
	"net/http"
	"time"

	"nback-go/internal/config"
	"nback-go/internal/handlers"
	"nback-go/internal/repository"
	"nback-go/internal/services"
	"nback-go/internal/utils"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

const (
	apiCSP   = "default-src 'none'; frame-ancestors 'none'"
	chartCSP = "default-src 'self'; script-src 'self' https://go-echarts.github.io 'unsafe-inline'; style-src 'self' 'unsafe-inline'"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Runner  *services.Runner
	Store   repository.HistoryStore
	Users   *repository.UserRepository // optional
	Archive *repository.Archive        // optional
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":      "too many requests, try again later",
		"retryAfter": time.Until(info.ResetTime).Round(time.Second).String(),
	})
}

func Setup(log *zap.Logger, conf config.ServerConfig, deps Deps) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	key, generated, err := utils.SessionKey(conf.SessionSecret)
	if err != nil {
		return nil, err
	}
	if generated {
		log.Warn("server.session_secret is empty; sessions will not survive a restart")
	}
	store := cookie.NewStore(key)
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   conf.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7,
	})
	router.Use(sessions.Sessions("nback_session", store))

	router.Use(CSRFProtection())
	router.Use(UserLoaderMiddleware(log, deps.Runner))

	router.Use(func(c *gin.Context) {
		if c.FullPath() == "/api/history/chart" && c.Query("format") == "html" {
			c.Header("Content-Security-Policy", chartCSP)
		} else {
			c.Header("Content-Security-Policy", apiCSP)
		}
		c.Next()
	})

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
	})

	sessionHandler := handlers.NewSessionHandler(log, deps.Runner)
	userHandler := handlers.NewUserHandler(log, deps.Runner, deps.Store, deps.Users)
	historyHandler := handlers.NewHistoryHandler(log, deps.Runner)
	sessionsHandler := handlers.NewSessionsHandler(log, deps.Store, deps.Archive)

	limit := conf.SelectRateLimit
	if limit <= 0 {
		limit = 10
	}
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: uint(limit),
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	api := router.Group("/api")
	{
		api.GET("/csrf", csrfToken)
		api.GET("/modes", historyHandler.Modes)
		api.GET("/users", userHandler.List)
		api.POST("/users/:name", limiter, userHandler.Select)

		authorized := api.Group("")
		authorized.Use(UserRequired())
		{
			authorized.PUT("/users/:name/pin", limiter, userHandler.SetPIN)

			authorized.GET("/state", sessionHandler.State)
			authorized.GET("/events", sessionHandler.Events)

			sessionRoutes := authorized.Group("/session")
			{
				sessionRoutes.POST("/start", sessionHandler.Start)
				sessionRoutes.POST("/cancel", sessionHandler.Cancel)
				sessionRoutes.POST("/pause", sessionHandler.Pause)
				sessionRoutes.POST("/advance", sessionHandler.Advance)
				sessionRoutes.POST("/press", sessionHandler.Press)
				sessionRoutes.POST("/answer", sessionHandler.Answer)
				sessionRoutes.PUT("/level", sessionHandler.SetLevel)
			}

			authorized.GET("/history", historyHandler.History)
			authorized.GET("/history/chart", historyHandler.Chart)

			authorized.GET("/sessions", sessionsHandler.List)
			authorized.GET("/sessions/:id/trials", sessionsHandler.Trials)
			authorized.GET("/archive", sessionsHandler.Archive)
		}
	}

	return router, nil
}

// Package httpapi assembles the HTTP surface of the hub: health, module
// status, the WebSocket endpoint and Prometheus metrics.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"nuhub/internal/auth"
	"nuhub/internal/microservices/http-api/handler"
	"nuhub/internal/microservices/http-api/middleware"
	"nuhub/internal/router"
)

// OperatorRole is the token role allowed on /api when auth is enabled.
const OperatorRole = "operator"

type Config struct {
	Router      *router.Router
	Auth        *auth.Service
	Journal     handler.JournalReader // optional
	WebSocket   gin.HandlerFunc       // optional
	Metrics     http.Handler          // optional
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewEngine wires every route on a fresh gin engine.
func NewEngine(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger.With("component", "http_api")))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"modules": len(cfg.Router.Modules()),
		})
	})

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.Auth), middleware.RequireRole(cfg.Auth, OperatorRole))
	handler.NewModuleHandler(cfg.Router, cfg.Journal).RegisterRoutes(api.Group("/modules"))

	if cfg.WebSocket != nil {
		r.GET("/ws", cfg.WebSocket)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	return r
}

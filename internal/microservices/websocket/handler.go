package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"nuhub/internal/auth"
	"nuhub/internal/router"
	"nuhub/internal/session"
)

// HTTP upgrade handler for WebSocket participants

type HandlerConfig struct {
	Manager        *session.Manager
	Auth           *auth.Service
	AllowedOrigins []string // empty allows every origin
	RateLimit      rate.Limit
	RateBurst      int
	Logger         *slog.Logger
}

// WSHandler upgrades GET /ws?token=...&role=... and registers the client.
func WSHandler(cfg HandlerConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, cfg.AllowedOrigins)
		},
	}

	return func(c *gin.Context) {
		claims, err := cfg.Auth.Authenticate(bearerOrQuery(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already replied to the client
			logger.Warn("websocket_upgrade_failed", "error", err)
			return
		}

		identity := cfg.Manager.NextIdentity()
		if claims.PlayerID != nil {
			identity = *claims.PlayerID
		}
		role := router.PlayerRole
		if claims.Role != "" {
			role = claims.Role
		} else if q := c.Query("role"); q != "" {
			role = q
		}

		client := NewClient(uuid.NewString(), identity, role, conn, cfg.Manager,
			rate.NewLimiter(cfg.RateLimit, cfg.RateBurst), logger)

		client.Send(session.WelcomeEnvelope(client.ID(), identity, role))
		if err := cfg.Manager.Add(client); err != nil {
			status := websocket.CloseInternalServerErr
			if errors.Is(err, session.ErrIdentityInUse) || errors.Is(err, session.ErrReservedIdentity) {
				status = websocket.ClosePolicyViolation
			}
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(status, err.Error()), time.Now().Add(WriteWait))
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

func bearerOrQuery(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
			return true
		}
	}
	return false
}

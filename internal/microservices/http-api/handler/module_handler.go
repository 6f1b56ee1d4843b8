package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nuhub/internal/microservices/http-api/dto"
	"nuhub/internal/router"
	"nuhub/internal/storage"
)

// JournalReader is the read side of the parameter journal.
type JournalReader interface {
	Recent(ctx context.Context, module string, limit int) ([]storage.JournalEntry, error)
}

type ModuleHandler struct {
	router  *router.Router
	journal JournalReader
}

// NewModuleHandler builds the module status handler. journal may be nil.
func NewModuleHandler(r *router.Router, journal JournalReader) *ModuleHandler {
	return &ModuleHandler{router: r, journal: journal}
}

func (h *ModuleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:name/params", h.Params)
	rg.GET("/:name/journal", h.Journal)
}

// List handles GET /api/modules
func (h *ModuleHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	mods := h.router.Modules()
	resp := make([]dto.ModuleResponse, 0, len(mods))
	for _, m := range mods {
		snap, err := h.router.Snapshot(ctx, m.Name())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		resp = append(resp, dto.ModuleFromRouter(m, len(snap)))
	}
	c.JSON(http.StatusOK, resp)
}

// Params handles GET /api/modules/:name/params
func (h *ModuleHandler) Params(c *gin.Context) {
	name := c.Param("name")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	snap, err := h.router.Snapshot(ctx, name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ParamsResponse{Module: name, Params: snap})
}

// Journal handles GET /api/modules/:name/journal?limit=N
func (h *ModuleHandler) Journal(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "journal is not configured"})
		return
	}
	name := c.Param("name")
	if _, ok := h.router.Module(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown module"})
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.journal.Recent(ctx, name, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := dto.JournalResponse{Module: name, Entries: make([]dto.JournalEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.JournalEntryResponse{
			ID:        e.ID,
			Name:      e.Name,
			Value:     []byte(e.Value),
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrUnknownModule):
		return http.StatusNotFound
	case errors.Is(err, router.ErrRouterStopped), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
)

// Pinger checks a dependency is reachable
type Pinger interface {
	Ping() error
}

// HealthHandler reports liveness of the service and its database
type HealthHandler struct {
	BaseHandler
	db      Pinger
	version string
	started time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version, started: time.Now()}
}

// HealthResponse is the body of the health check
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
}

// Health pings the database; an unreachable database answers 503.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Database: "connected",
		Version:  h.version,
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
	}
	if err := h.db.Ping(); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}

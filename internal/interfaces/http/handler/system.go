package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/erp/profitledger/internal/infrastructure/logger"
	"github.com/erp/profitledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger checks that the store is reachable.
type Pinger interface {
	Ping() error
	Driver() string
}

// SystemHandler serves liveness and storage checks
type SystemHandler struct {
	BaseHandler
	name      string
	db        Pinger
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name string, db Pinger) *SystemHandler {
	return &SystemHandler{
		name:      name,
		db:        db,
		startTime: time.Now(),
	}
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status    string `json:"status"`
	Name      string `json:"name"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health reports that the process is up
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, HealthResponse{
		Status:    "ok",
		Name:      h.name,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// DBPingResponse is the storage ping payload
type DBPingResponse struct {
	OK     bool   `json:"ok"`
	Driver string `json:"driver"`
}

// DBPing checks the database connection. A failed ping answers 503 with ok=false.
func (h *SystemHandler) DBPing(c *gin.Context) {
	resp := DBPingResponse{OK: true, Driver: h.db.Driver()}
	if err := h.db.Ping(); err != nil {
		logger.GetGinLogger(c).Warn("Database ping failed", zap.Error(err))
		resp.OK = false
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    resp,
			Error:   &dto.ErrorInfo{Code: dto.ErrCodeUnavailable, Message: "Database is unreachable"},
		})
		return
	}
	h.Success(c, resp)
}

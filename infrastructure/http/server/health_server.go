package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nerdsphere/observability"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthServer struct {
	log     *slog.Logger
	store   Pinger
	driver  string
	monitor *observability.ProcessMonitor
	timeout time.Duration
}

func NewHealthServer(log *slog.Logger, store Pinger, driver string,
	monitor *observability.ProcessMonitor, timeout time.Duration) *HealthServer {
	return &HealthServer{log: log, store: store, driver: driver, monitor: monitor, timeout: timeout}
}

// Health answers 503 when the store does not answer a ping in time.
func (s *HealthServer) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn("Store ping failed", "store", s.driver, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "store": s.driver})
		return
	}

	body := gin.H{"status": "ok", "store": s.driver}
	stats, err := s.monitor.Snapshot()
	if err != nil {
		s.log.Debug("Process stats unavailable", "error", err)
		c.JSON(http.StatusOK, body)
		return
	}
	body["pid"] = stats.PID
	body["rssBytes"] = stats.RSSBytes
	body["cpuPercent"] = stats.CPUPercent
	body["goroutines"] = stats.Goroutines
	body["uptime"] = stats.Uptime.Round(time.Second).String()
	c.JSON(http.StatusOK, body)
}

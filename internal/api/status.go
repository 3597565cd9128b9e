package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/skyroute/pkg/skyroute"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string          `json:"status"`
	Version    string          `json:"version"`
	Error      string          `json:"error,omitempty"`
	Connection skyroute.Status `json:"connection"`
}

// SystemStatus represents the complete status response.
type SystemStatus struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Router        skyroute.Status `json:"router"`
	Journal       bool            `json:"journal_enabled"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// handleHealth reports 200 while the broker connection is up, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Connection: s.router.Status(),
	}
	status := http.StatusOK
	if err := s.router.HealthCheck(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleStatus returns runtime and router counters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Router:  s.router.Status(),
		Journal: s.failures != nil,
	})
}

package httpapi

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	app "github.com/R3E-Network/country_service/internal/app"
	"github.com/R3E-Network/country_service/internal/httputil"
)

type infoResponse struct {
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	StartedAt  time.Time      `json:"started_at"`
	Schedule   string         `json:"refresh_schedule"`
	Statistics infoStatistics `json:"statistics"`
}

type infoStatistics struct {
	UptimeSeconds  int64    `json:"uptime_seconds"`
	Goroutines     int      `json:"goroutines"`
	ProcessRSS     uint64   `json:"process_rss_bytes,omitempty"`
	ProcessCPU     *float64 `json:"process_cpu_percent,omitempty"`
	SystemMemUsed  *float64 `json:"system_memory_used_percent,omitempty"`
	SystemMemTotal uint64   `json:"system_memory_total_bytes,omitempty"`
}

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	started := h.app.StartedAt()
	resp := infoResponse{
		Service:   app.ServiceName,
		Version:   app.Version,
		StartedAt: started,
		Statistics: infoStatistics{
			UptimeSeconds: int64(time.Since(started).Seconds()),
			Goroutines:    runtime.NumGoroutine(),
		},
	}
	if h.app.Scheduler != nil {
		resp.Schedule = h.app.Scheduler.Spec()
	}

	ctx := r.Context()
	// Host statistics are informational; unavailable values are omitted.
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
			resp.Statistics.ProcessRSS = memInfo.RSS
		}
		if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
			resp.Statistics.ProcessCPU = &cpu
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		used := vm.UsedPercent
		resp.Statistics.SystemMemUsed = &used
		resp.Statistics.SystemMemTotal = vm.Total
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

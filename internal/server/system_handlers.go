package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/coinscope/coinscope/internal/realtime"
)

// SystemHandlers serves process and host level status.
type SystemHandlers struct {
	dataDir     string
	hub         *realtime.Hub
	startupTime time.Time
	log         zerolog.Logger
}

func NewSystemHandlers(dataDir string, hub *realtime.Hub, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		dataDir:     dataDir,
		hub:         hub,
		startupTime: time.Now(),
		log:         log.With().Str("handlers", "system").Logger(),
	}
}

// GetStatus returns host resource usage and process information.
func (h *SystemHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.systemStats()

	diskInfo := map[string]any{}
	if usage, err := disk.Usage(h.dataDir); err == nil {
		diskInfo["used_percent"] = usage.UsedPercent
		diskInfo["free_bytes"] = usage.Free
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":    int64(time.Since(h.startupTime).Seconds()),
		"cpu_percent":       cpuPercent,
		"ram_percent":       ramPercent,
		"disk":              diskInfo,
		"goroutines":        runtime.NumGoroutine(),
		"websocket_clients": h.hub.ClientCount(),
	})
}

func (h *SystemHandlers) systemStats() (float64, float64) {
	var cpuAvg float64
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read CPU usage")
	} else if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read memory usage")
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}

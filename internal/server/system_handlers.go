package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/raceday/internal/database"
	"github.com/aristath/raceday/internal/modules/conservation"
	"github.com/aristath/raceday/internal/modules/scenarios"
)

// SystemHandlers serves the monitoring endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	historyDB *database.DB
	cache     *scenarios.Cache
	validator *conservation.Validator
	startedAt time.Time
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	historyDB *database.DB,
	cache *scenarios.Cache,
	validator *conservation.Validator,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		historyDB: historyDB,
		cache:     cache,
		validator: validator,
		startedAt: time.Now(),
	}
}

// HandleHealth is the liveness endpoint: GET /health.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.historyDB != nil {
		if err := h.historyDB.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("History database unreachable")
			status = "degraded"
		}
	}
	h.writeJSON(w, map[string]any{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleSystemStatus reports process and host stats: GET /api/system/status.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.getSystemStats()
	stats := h.validator.Stats()

	h.writeJSON(w, map[string]any{
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":     cpuAvg,
		"ram_percent":     ramPercent,
		"cached_matrices": h.cache.Len(),
		"validation": map[string]any{
			"total_validated": stats.TotalValidated,
			"total_rejected":  stats.TotalRejected,
			"rejection_rate":  stats.RejectionRate(),
		},
	})
}

// HandleDatabaseStats reports history database file statistics:
// GET /api/system/database/stats.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.historyDB == nil {
		h.writeJSON(w, map[string]string{"status": "history disabled"})
		return
	}
	stats, err := h.historyDB.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{
		"size_bytes":     stats.SizeBytes,
		"wal_size_bytes": stats.WALSizeBytes,
		"page_count":     stats.PageCount,
		"page_size":      stats.PageSize,
	})
}

// getSystemStats samples CPU and RAM usage. The CPU sample uses a short
// interval so the status endpoint stays fast for pollers.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

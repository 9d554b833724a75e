package conservation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers provides HTTP handlers for scenario validation.
type Handlers struct {
	validator *Validator
	log       zerolog.Logger
}

// NewHandlers creates the conservation handlers.
func NewHandlers(validator *Validator, log zerolog.Logger) *Handlers {
	return &Handlers{
		validator: validator,
		log:       log.With().Str("module", "conservation_handlers").Logger(),
	}
}

// RegisterRoutes registers all scenario validation routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/scenarios", func(r chi.Router) {
		r.Post("/validate", h.ValidateOne)
		r.Post("/validate-batch", h.ValidateBatch)
		r.Get("/rejection-stats", h.RejectionStats)
		r.Post("/rejection-stats/reset", h.ResetStats)
	})
}

// ValidateOne handles POST /scenarios/validate with a single scenario
// payload. Malformed payloads are vetoed, not rejected at the HTTP layer:
// the caller gets a 200 with passed=false so batch pipelines behave the
// same for bad data as for impossible data.
func (h *Handlers) ValidateOne(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	record := h.validator.ValidatePayload(payload)
	h.writeJSON(w, http.StatusOK, recordResponse(record))
}

// ValidateBatch handles POST /scenarios/validate-batch.
func (h *Handlers) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scenarios []map[string]any `json:"scenarios"`
		Parallel  bool             `json:"parallel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	// Malformed entries are vetoed in place; well-formed ones go through
	// the batch path. The summary covers the whole request either way.
	parsed := make([]Scenario, 0, len(body.Scenarios))
	malformed := make(map[int]Record)
	for i, payload := range body.Scenarios {
		s, err := ParseScenario(payload)
		if err != nil {
			malformed[i] = h.validator.ValidatePayload(payload)
			continue
		}
		parsed = append(parsed, s)
	}

	var batchRecords []Record
	if body.Parallel {
		batchRecords, _ = h.validator.BatchValidateParallel(parsed)
	} else {
		batchRecords, _ = h.validator.BatchValidate(parsed)
	}

	records := make([]Record, 0, len(body.Scenarios))
	next := 0
	for i := range body.Scenarios {
		if rec, ok := malformed[i]; ok {
			records = append(records, rec)
			continue
		}
		records = append(records, batchRecords[next])
		next++
	}

	summary := BatchSummary{Validated: int64(len(records))}
	for _, rec := range records {
		if !rec.Passed {
			summary.Rejected++
		}
	}
	if summary.Validated > 0 {
		summary.RejectionRate = float64(summary.Rejected) / float64(summary.Validated)
	}

	resp := map[string]any{
		"records": recordsResponse(records),
		"summary": summary,
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// RejectionStats handles GET /scenarios/rejection-stats.
func (h *Handlers) RejectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.validator.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"total_validated": stats.TotalValidated,
		"total_rejected":  stats.TotalRejected,
		"rejection_rate":  stats.RejectionRate(),
		"by_reason":       stats.ByReason,
	})
}

// ResetStats handles POST /scenarios/rejection-stats/reset.
func (h *Handlers) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.validator.ResetStats()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type recordPayload struct {
	Passed  bool     `json:"passed"`
	Reasons []string `json:"reasons"`
}

func recordResponse(rec Record) recordPayload {
	reasons := rec.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return recordPayload{Passed: rec.Passed, Reasons: reasons}
}

func recordsResponse(records []Record) []recordPayload {
	out := make([]recordPayload, len(records))
	for i, rec := range records {
		out[i] = recordResponse(rec)
	}
	return out
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

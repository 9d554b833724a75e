package contest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers provides HTTP handlers for payout curve fitting.
type Handlers struct {
	log zerolog.Logger
}

// NewHandlers creates the contest handlers.
func NewHandlers(log zerolog.Logger) *Handlers {
	return &Handlers{log: log.With().Str("module", "contest_handlers").Logger()}
}

// RegisterRoutes registers the contest routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/contests", func(r chi.Router) {
		r.Post("/payout-curve", h.FitPayoutCurve)
	})
}

// FitPayoutCurve handles POST /contests/payout-curve: fit a curve family
// to published rank/payout pairs and evaluate it over the requested ranks.
func (h *Handlers) FitPayoutCurve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind     string    `json:"kind"`
		Ranks    []int     `json:"ranks"`
		Payouts  []float64 `json:"payouts"`
		Evaluate []int     `json:"evaluate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	curve, err := FitCurve(CurveKind(body.Kind), body.Ranks, body.Payouts)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scale, shape := curve.Params()
	fitted := make(map[int]float64, len(body.Evaluate))
	for _, rank := range body.Evaluate {
		fitted[rank] = curve.Payout(rank)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"kind":   curve.Kind(),
		"scale":  scale,
		"shape":  shape,
		"fitted": fitted,
	})
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

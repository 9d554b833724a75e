package optimization

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/raceday/internal/modules/history"
)

// Handlers provides HTTP handlers for portfolio generation and run history.
type Handlers struct {
	service          *Service
	history          *history.Repository // optional
	defaultTimeLimit time.Duration
	log              zerolog.Logger
}

// NewHandlers creates the optimization handlers.
func NewHandlers(
	service *Service,
	hist *history.Repository,
	defaultTimeLimit time.Duration,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		service:          service,
		history:          hist,
		defaultTimeLimit: defaultTimeLimit,
		log:              log.With().Str("module", "optimization_handlers").Logger(),
	}
}

// RegisterRoutes registers all portfolio routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/generate", h.Generate)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)
		r.Get("/runs/{runID}/export", h.ExportRun)
	})
}

// GenerateRequestBody is the JSON shape of a generation call. The scenario
// matrix arrives inline: one row per scenario, one column per candidate in
// pool order.
type GenerateRequestBody struct {
	Identifier string      `json:"identifier"`
	Candidates []Candidate `json:"candidates"`
	Scenarios  [][]float64 `json:"scenarios"`

	Config struct {
		NumLineups        int       `json:"num_lineups"`
		Objective         string    `json:"objective"`
		Alphas            []float64 `json:"alphas"`
		Weights           []float64 `json:"weights"`
		DiversityWeight   float64   `json:"diversity_weight"`
		MaxEntityExposure float64   `json:"max_entity_exposure"`
		MaxGroupExposure  float64   `json:"max_group_exposure"`
		RosterSize        int       `json:"roster_size"`
		BudgetCap         float64   `json:"budget_cap"`
		MinStack          int       `json:"min_stack"`
		MaxStack          int       `json:"max_stack"`
		SolverTimeLimitMS int       `json:"solver_time_limit_ms"`
		Seed              int64     `json:"seed"`
	} `json:"config"`
}

// Generate handles POST /portfolio/generate.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	req, err := h.buildRequest(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	portfolio, err := h.service.GeneratePortfolio(r.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Str("identifier", body.Identifier).Msg("Generation rejected")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, portfolio)
}

func (h *Handlers) buildRequest(body GenerateRequestBody) (GenerateRequest, error) {
	rules, err := NewRosterRules(
		body.Config.RosterSize, body.Config.BudgetCap,
		body.Config.MinStack, body.Config.MaxStack)
	if err != nil {
		return GenerateRequest{}, err
	}

	timeLimit := h.defaultTimeLimit
	if body.Config.SolverTimeLimitMS > 0 {
		timeLimit = time.Duration(body.Config.SolverTimeLimitMS) * time.Millisecond
	}

	objective := ObjectiveType(body.Config.Objective)
	if objective == "" {
		objective = ObjectiveCVaR
	}

	if len(body.Scenarios) == 0 {
		return GenerateRequest{}, fmt.Errorf("scenarios are required")
	}
	width := len(body.Candidates)
	rows := make([]float64, 0, len(body.Scenarios)*width)
	for i, row := range body.Scenarios {
		if len(row) != width {
			return GenerateRequest{}, fmt.Errorf(
				"scenario row %d has %d entries, pool has %d candidates", i, len(row), width)
		}
		rows = append(rows, row...)
	}
	matrix := mat.NewDense(len(body.Scenarios), width, rows)

	cfg := Config{
		NumLineups:        body.Config.NumLineups,
		NumScenarios:      len(body.Scenarios),
		Objective:         objective,
		Alphas:            body.Config.Alphas,
		Weights:           body.Config.Weights,
		DiversityWeight:   body.Config.DiversityWeight,
		MaxEntityExposure: body.Config.MaxEntityExposure,
		MaxGroupExposure:  body.Config.MaxGroupExposure,
		Rules:             rules,
		SolverTimeLimit:   timeLimit,
		Seed:              body.Config.Seed,
	}

	return GenerateRequest{
		Identifier: body.Identifier,
		Candidates: body.Candidates,
		Producer:   func(int) (*mat.Dense, error) { return matrix, nil },
		Config:     cfg,
	}, nil
}

// ListRuns handles GET /portfolio/runs.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	runs, err := h.history.ListRuns(r.Context(), 50)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GetRun handles GET /portfolio/runs/{runID}.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	run, err := h.history.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// ExportRun handles GET /portfolio/runs/{runID}/export: the lineups as a
// headerless CSV in the contest upload format.
func (h *Handlers) ExportRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", runID+".csv"))
	if err := h.service.ExportRunCSV(r.Context(), runID, w); err != nil {
		h.log.Warn().Err(err).Str("run_id", runID).Msg("Export failed")
	}
}

// writeJSON writes a JSON response.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/copyleftdev/scryshot/internal/runs"
	"github.com/copyleftdev/scryshot/internal/scenario"
	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type APIHandler struct {
	runManager *runs.Manager
	catalog    *scenario.Catalog
	logger     *zap.Logger
}

func NewAPIHandler(rm *runs.Manager, catalog *scenario.Catalog, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		runManager: rm,
		catalog:    catalog,
		logger:     logger,
	}
}

// SubmitRunRequest names a known scenario, or defines one inline through
// Steps in the scenario file syntax.
type SubmitRunRequest struct {
	Scenario    string          `json:"scenario,omitempty"`
	Name        string          `json:"name,omitempty"`
	Headless    *bool           `json:"headless,omitempty"`
	Steps       json.RawMessage `json:"steps,omitempty"`
	CallbackURL string          `json:"callback_url,omitempty"`
}

type SubmitRunResponse struct {
	RunID string `json:"run_id"`
}

type ScenarioSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
}

func (h *APIHandler) HandleSubmitRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}

	if err := runs.ValidateCallbackURL(req.CallbackURL); err != nil {
		h.respondError(w, http.StatusBadRequest, "%v", err)
		return
	}

	sc, status, err := h.resolveScenario(req)
	if err != nil {
		h.respondError(w, status, "%v", err)
		return
	}

	run, err := h.runManager.Submit(sc, req.CallbackURL)
	switch {
	case errors.Is(err, runs.ErrShuttingDown):
		h.respondError(w, http.StatusServiceUnavailable, "%v", err)
		return
	case errors.Is(err, runs.ErrBadCallback):
		h.respondError(w, http.StatusBadRequest, "%v", err)
		return
	case err != nil:
		h.respondError(w, http.StatusBadRequest, "Invalid scenario: %v", err)
		return
	}

	h.logger.Info("Submitted new run", zap.String("run_id", run.ID.String()), zap.String("scenario", sc.Name))
	h.respondJSON(w, http.StatusAccepted, SubmitRunResponse{RunID: run.ID.String()})
}

func (h *APIHandler) resolveScenario(req SubmitRunRequest) (scenariotypes.Scenario, int, error) {
	hasSteps := len(req.Steps) > 0 && string(req.Steps) != "null"
	switch {
	case req.Scenario != "" && hasSteps:
		return scenariotypes.Scenario{}, http.StatusBadRequest, fmt.Errorf("specify either scenario or steps, not both")
	case req.Scenario != "":
		sc, ok := h.catalog.Get(req.Scenario)
		if !ok {
			return sc, http.StatusNotFound, fmt.Errorf("unknown scenario: %s", req.Scenario)
		}
		if req.Headless != nil {
			sc.Headless = req.Headless
		}
		return sc, http.StatusOK, nil
	case hasSteps:
		steps, err := scenario.ParseSteps(req.Steps)
		if err != nil {
			return scenariotypes.Scenario{}, http.StatusBadRequest, err
		}
		name := req.Name
		if name == "" {
			name = "adhoc"
		}
		return scenariotypes.Scenario{Name: name, Headless: req.Headless, Steps: steps}, http.StatusOK, nil
	default:
		return scenariotypes.Scenario{}, http.StatusBadRequest, fmt.Errorf("request must name a scenario or contain steps")
	}
}

func (h *APIHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runIDStr := chi.URLParam(r, "runID")
	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid run ID format: %v", err)
		return
	}

	run, err := h.runManager.Get(runID)
	if err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Run not found")
		} else {
			h.logger.Error("Error retrieving run", zap.String("run_id", runIDStr), zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *APIHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runManager.List())
}

func (h *APIHandler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := h.catalog.List()
	out := make([]ScenarioSummary, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, ScenarioSummary{Name: sc.Name, Description: sc.Description, Steps: len(sc.Steps)})
	}
	h.respondJSON(w, http.StatusOK, out)
}

// --- Helper Functions ---

func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Error marshalling JSON response", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to marshal JSON response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		h.logger.Warn("Error writing JSON response", zap.Error(err))
	}
}

func (h *APIHandler) respondError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	errorMessage := fmt.Sprintf(format, args...)
	jsonResponse, err := json.Marshal(map[string]string{"error": errorMessage})
	if err != nil {
		h.logger.Error("Error marshalling JSON error response", zap.Error(err))
		jsonResponse = []byte(`{"error":"internal error"}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(jsonResponse); err != nil {
		h.logger.Warn("Error writing error response", zap.Error(err))
	}
}

package calibd

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

const maxBodyBytes = 32 << 20

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)
	s.mux.HandleFunc("/v1/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("/v1/schemes", s.handleListSchemes)
	s.mux.HandleFunc("/v1/schemes/", s.handleSchemeByName)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id}, /v1/runs/{id}:stop and /v1/runs/{id}/scheme
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	if runID, ok := strings.CutSuffix(path, ":stop"); ok {
		if r.Method == http.MethodPost {
			s.handleStopRun(w, r, runID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if runID, ok := strings.CutSuffix(path, "/scheme"); ok {
		if r.Method == http.MethodGet {
			s.handleRunScheme(w, r, runID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method == http.MethodGet {
		s.handleGetRun(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	run, err := s.Executor.Submit(&req)
	if err != nil {
		s.writeError(w, httpStatus(err), err.Error())
		return
	}

	logger.Info("run created (HTTP)", "run_id", run.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{"run": run})
}

// handleListRuns handles GET /v1/runs with pagination and status filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if parsed, err := strconv.Atoi(q.Get("limit")); err == nil && parsed > 0 {
		limit = min(parsed, 1000)
	}
	offset := 0
	if parsed, err := strconv.Atoi(q.Get("offset")); err == nil && parsed >= 0 {
		offset = parsed
	}
	status := models.RunStatus(strings.ToLower(q.Get("status")))

	runs := s.store.List(limit, offset, status)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	run, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeError(w, httpStatus(err), err.Error())
		return
	}
	logger.Info("run cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{"run": updated})
}

// handleRunScheme handles GET /v1/runs/{id}/scheme
func (s *HTTPServer) handleRunScheme(w http.ResponseWriter, _ *http.Request, runID string) {
	run, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if scheme, ok := s.store.CalibratedScheme(runID); ok {
		s.writeScheme(w, scheme)
		return
	}
	// Runs recovered from storage only know the name they were saved under.
	if name := run.Metadata[MetadataOutputScheme]; name != "" && s.Executor.Schemes() != nil {
		doc, err := s.Executor.Schemes().SchemeDocument(name)
		if err == nil {
			s.writeXML(w, doc)
			return
		}
	}
	s.writeError(w, http.StatusPreconditionFailed, "calibrated scheme not available")
}

// handleEvaluate handles POST /v1/evaluate
func (s *HTTPServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req EvaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	resp, err := Evaluate(&req, s.Executor.Schemes())
	if err != nil {
		s.writeError(w, httpStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleListSchemes handles GET /v1/schemes
func (s *HTTPServer) handleListSchemes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	schemes := s.Executor.Schemes()
	if schemes == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"schemes": []string{}})
		return
	}
	names, err := schemes.ListSchemes()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"schemes": names})
}

// handleSchemeByName handles GET and PUT /v1/schemes/{name}
func (s *HTTPServer) handleSchemeByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/v1/schemes/")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "scheme name is required")
		return
	}
	schemes := s.Executor.Schemes()
	if schemes == nil {
		s.writeError(w, http.StatusNotFound, "no scheme store configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := schemes.SchemeDocument(name)
		if err != nil {
			s.writeError(w, httpStatus(err), err.Error())
			return
		}
		s.writeXML(w, doc)
	case http.MethodPut:
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		scheme, err := fuzzy.ParseScheme(data)
		if err != nil {
			s.writeError(w, httpStatus(err), err.Error())
			return
		}
		scheme.SetName(name)
		if err := schemes.SaveScheme(scheme); err != nil {
			s.writeError(w, httpStatus(err), err.Error())
			return
		}
		logger.Info("scheme stored (HTTP)", "scheme", name)
		s.writeJSON(w, http.StatusOK, map[string]any{
			"scheme":  name,
			"factors": scheme.NumFactors(),
			"rules":   scheme.NumRules(),
		})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) writeScheme(w http.ResponseWriter, scheme *fuzzy.Scheme) {
	doc, err := scheme.MarshalText()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeXML(w, doc)
}

func (s *HTTPServer) writeXML(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

package calibd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/store"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

func newTestHTTPServer(t *testing.T, withStore bool) (*HTTPServer, *RunStore) {
	t.Helper()
	runs := NewRunStore()
	var schemes *store.Store
	if withStore {
		schemes = newMemoryStore(t)
	}
	exec := NewRunExecutor(runs, schemes, ExecutorOptions{MaxConcurrentRuns: 2})
	t.Cleanup(exec.Wait)
	return NewHTTPServer(runs, exec), runs
}

func serve(srv *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rr.Body.String(), err)
	}
	return body
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestHTTPServerHealthz(t *testing.T) {
	srv, _ := newTestHTTPServer(t, false)
	rr := serve(srv, http.MethodGet, "/healthz", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["timestamp"] == "" {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestHTTPServerMetrics(t *testing.T) {
	srv, _ := newTestHTTPServer(t, false)
	rr := serve(srv, http.MethodPost, "/v1/runs", mustJSON(t, shortRequest()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	srv.Executor.Wait()

	rr = serve(srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	for _, name := range []string{"fuzzycal_runs_submitted_total", "fuzzycal_annealing_iterations_total", "fuzzycal_runs_finished_total"} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}
}

func TestHTTPServerCreateGetListRun(t *testing.T) {
	srv, runs := newTestHTTPServer(t, false)

	req := shortRequest()
	req.RunID = "run-http"
	rr := serve(srv, http.MethodPost, "/v1/runs", mustJSON(t, req))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	run, ok := decode(t, rr)["run"].(map[string]any)
	if !ok {
		t.Fatalf("expected run in response")
	}
	if run["id"] != "run-http" {
		t.Fatalf("expected run-http, got %v", run["id"])
	}
	waitForStatus(t, runs, "run-http", models.RunStatusCompleted)

	rr = serve(srv, http.MethodGet, "/v1/runs/run-http", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	run = decode(t, rr)["run"].(map[string]any)
	if run["status"] != string(models.RunStatusCompleted) {
		t.Fatalf("expected completed, got %v", run["status"])
	}
	summary, ok := run["summary"].(map[string]any)
	if !ok || summary["stop_reason"] != "max_iterations" {
		t.Fatalf("unexpected summary %v", run["summary"])
	}

	rr = serve(srv, http.MethodGet, "/v1/runs?limit=5&status=completed", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	list := body["runs"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected 1 run, got %d", len(list))
	}
	pagination := body["pagination"].(map[string]any)
	if pagination["limit"] != float64(5) || pagination["count"] != float64(1) {
		t.Fatalf("unexpected pagination %v", pagination)
	}

	rr = serve(srv, http.MethodGet, "/v1/runs?status=failed", "")
	if got := decode(t, rr)["runs"].([]any); len(got) != 0 {
		t.Fatalf("expected no failed runs, got %d", len(got))
	}
}

func TestHTTPServerRunScheme(t *testing.T) {
	srv, runs := newTestHTTPServer(t, false)

	rr := serve(srv, http.MethodPost, "/v1/runs", mustJSON(t, shortRequest()))
	run := decode(t, rr)["run"].(map[string]any)
	id := run["id"].(string)
	final := waitForStatus(t, runs, id, models.RunStatusCompleted)

	rr = serve(srv, http.MethodGet, "/v1/runs/"+id+"/scheme", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("expected xml content type, got %s", ct)
	}
	scheme, err := fuzzy.ParseScheme(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("returned scheme does not parse: %v", err)
	}
	got := scheme.Consequents()
	for i, want := range final.Summary.Consequents {
		if d := got[i] - want; d > 1e-9 || d < -1e-9 {
			t.Fatalf("consequent %d: got %v, want %v", i, got[i], want)
		}
	}

	rr = serve(srv, http.MethodGet, "/v1/runs/missing/scheme", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHTTPServerStopRun(t *testing.T) {
	srv, runs := newTestHTTPServer(t, false)

	req := longRequest()
	req.RunID = "run-long"
	rr := serve(srv, http.MethodPost, "/v1/runs", mustJSON(t, req))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	waitForStatus(t, runs, "run-long", models.RunStatusRunning)

	rr = serve(srv, http.MethodGet, "/v1/runs/run-long:stop", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}

	rr = serve(srv, http.MethodPost, "/v1/runs/run-long:stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode(t, rr)["run"].(map[string]any)["status"]; got != string(models.RunStatusCancelled) {
		t.Fatalf("expected cancelled, got %v", got)
	}

	rr = serve(srv, http.MethodPost, "/v1/runs/run-long:stop", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for terminal run, got %d", rr.Code)
	}
	rr = serve(srv, http.MethodPost, "/v1/runs/missing:stop", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHTTPServerCreateRunErrors(t *testing.T) {
	srv, _ := newTestHTTPServer(t, false)

	badXML := shortRequest()
	badXML.SchemeXML = "<nope"
	missing := shortRequest()
	missing.Samples = []SampleInput{{Factors: map[string]float64{"rain": 3}, Observed: 1}}
	named := shortRequest()
	named.SchemeXML = ""
	named.SchemeName = "unknown"
	nanCSV := shortRequest()
	nanCSV.Samples = nil
	nanCSV.DatasetCSV = "N_input,n2o_flux\n1,NaN\n5,1.5\n"
	nanCSV.Target = "n2o_flux"

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"bad xml", mustJSON(t, badXML), http.StatusBadRequest},
		{"missing factor", mustJSON(t, missing), http.StatusBadRequest},
		{"unknown scheme", mustJSON(t, named), http.StatusNotFound},
		{"nan observed", mustJSON(t, nanCSV), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(srv, http.MethodPost, "/v1/runs", tt.body)
			if rr.Code != tt.code {
				t.Fatalf("expected status %d, got %d: %s", tt.code, rr.Code, rr.Body.String())
			}
			if decode(t, rr)["error"] == "" {
				t.Fatalf("expected error message")
			}
		})
	}

	if rr := serve(srv, http.MethodDelete, "/v1/runs", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/v1/runs/", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/v1/runs/missing", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHTTPServerEvaluate(t *testing.T) {
	srv, _ := newTestHTTPServer(t, false)

	body := mustJSON(t, EvaluateRequest{
		SchemeXML: testSchemeXML,
		Inputs:    []map[string]float64{{"N_input": 10}, {"N_input": 50}, {"N_input": 500}},
	})
	rr := serve(srv, http.MethodPost, "/v1/evaluate", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp EvaluateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Scheme != "n2o_nitrogen" || len(resp.Responses) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	for i, y := range resp.Responses {
		if y != 10 {
			t.Fatalf("response %d: expected 10 from uniform consequents, got %v", i, y)
		}
	}

	body = mustJSON(t, EvaluateRequest{SchemeXML: testSchemeXML, Inputs: []map[string]float64{{"rain": 1}}})
	if rr := serve(srv, http.MethodPost, "/v1/evaluate", body); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing factor, got %d", rr.Code)
	}
	body = mustJSON(t, EvaluateRequest{SchemeXML: testSchemeXML})
	if rr := serve(srv, http.MethodPost, "/v1/evaluate", body); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty inputs, got %d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/v1/evaluate", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHTTPServerSchemes(t *testing.T) {
	srv, runs := newTestHTTPServer(t, true)

	rr := serve(srv, http.MethodGet, "/v1/schemes", "")
	if got := decode(t, rr)["schemes"].([]any); len(got) != 0 {
		t.Fatalf("expected empty scheme list, got %v", got)
	}

	rr = serve(srv, http.MethodPut, "/v1/schemes/n2o", testSchemeXML)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["scheme"] != "n2o" || body["factors"] != float64(1) || body["rules"] != float64(3) {
		t.Fatalf("unexpected put response %v", body)
	}

	rr = serve(srv, http.MethodPut, "/v1/schemes/broken", "<FuzzyInferenceScheme")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	rr = serve(srv, http.MethodGet, "/v1/schemes/n2o", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	stored, err := fuzzy.ParseScheme(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("stored scheme does not parse: %v", err)
	}
	if stored.Name() != "n2o" {
		t.Fatalf("PUT must rename the scheme, got %s", stored.Name())
	}
	if rr := serve(srv, http.MethodGet, "/v1/schemes/unknown", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	// Calibrate the stored scheme by name and fetch the result.
	req := shortRequest()
	req.SchemeXML = ""
	req.SchemeName = "n2o"
	req.OutputName = "n2o_fit"
	rr = serve(srv, http.MethodPost, "/v1/runs", mustJSON(t, req))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	id := decode(t, rr)["run"].(map[string]any)["id"].(string)
	waitForStatus(t, runs, id, models.RunStatusCompleted)
	srv.Executor.Wait()

	rr = serve(srv, http.MethodGet, "/v1/schemes", "")
	names := decode(t, rr)["schemes"].([]any)
	if len(names) != 2 || names[0] != "n2o" || names[1] != "n2o_fit" {
		t.Fatalf("unexpected scheme list %v", names)
	}

	rr = serve(srv, http.MethodPost, "/v1/evaluate", mustJSON(t, EvaluateRequest{
		SchemeName: "n2o_fit",
		Inputs:     []map[string]float64{{"N_input": 50}},
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if rr := serve(srv, http.MethodDelete, "/v1/schemes/n2o", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHTTPServerSchemesWithoutStore(t *testing.T) {
	srv, _ := newTestHTTPServer(t, false)

	rr := serve(srv, http.MethodGet, "/v1/schemes", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/v1/schemes/n2o", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

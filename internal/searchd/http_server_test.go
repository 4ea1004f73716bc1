package searchd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHTTPServer(t *testing.T, opts HTTPOptions) (*RunStore, *HTTPServer) {
	t.Helper()
	store, exec := newTestExecutor(t, 2)
	return store, NewHTTPServer(store, exec, opts)
}

func doRequest(t *testing.T, h http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return doRequest(t, h, method, path, "application/json", raw)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHTTPHealthzAndMetrics(t *testing.T) {
	_, srv := newTestHTTPServer(t, HTTPOptions{})

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestHTTPCreateRunLifecycle(t *testing.T) {
	store, srv := newTestHTTPServer(t, HTTPOptions{})
	h := srv.Handler()

	rr := doJSON(t, h, http.MethodPost, "/v1/runs", map[string]any{
		"run_id":      "http-run",
		"config_yaml": smallSearchYAML,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	run := decodeBody(t, rr)["run"].(map[string]any)
	assert.Equal(t, "http-run", run["id"])
	assert.Equal(t, string(RunStatusRunning), run["status"])

	waitForStatus(t, store, "http-run", RunStatusCompleted)

	rr = doRequest(t, h, http.MethodGet, "/v1/runs/http-run", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	run = decodeBody(t, rr)["run"].(map[string]any)
	assert.Equal(t, string(RunStatusCompleted), run["status"])

	rr = doRequest(t, h, http.MethodGet, "/v1/runs/http-run/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	board := decodeBody(t, rr)["leaderboard"].(map[string]any)
	assert.Equal(t, "http-run", board["run_id"])
	assert.NotEmpty(t, board["standings"])

	rr = doRequest(t, h, http.MethodPost, "/v1/runs/http-run/stop", "", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHTTPCreateRunWithConfigObject(t *testing.T) {
	store, srv := newTestHTTPServer(t, HTTPOptions{})
	rr := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", map[string]any{
		"run_id": "object-run",
		"config": map[string]any{
			"gauge_mm":         200,
			"heads":            []string{"ap_head"},
			"variable_modules": []string{"solid_body"},
			"budget_ceiling":   2,
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rec := waitForStatus(t, store, "object-run", RunStatusCompleted)
	assert.Equal(t, uint64(3), rec.Result.Configurations)
}

func TestHTTPCreateRunYAMLBody(t *testing.T) {
	store, srv := newTestHTTPServer(t, HTTPOptions{})
	rr := doRequest(t, srv.Handler(), http.MethodPost, "/v1/runs?run_id=yaml-run", "application/x-yaml", []byte(smallSearchYAML))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	waitForStatus(t, store, "yaml-run", RunStatusCompleted)
}

func TestHTTPCreateRunRejections(t *testing.T) {
	_, srv := newTestHTTPServer(t, HTTPOptions{})
	h := srv.Handler()

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"missing config", map[string]any{"run_id": "a"}, http.StatusBadRequest},
		{"invalid config", map[string]any{"config_yaml": "gauge_mm: 5\nheads: [ap_head]"}, http.StatusBadRequest},
		{"metadata callback", map[string]any{"config_yaml": smallSearchYAML, "callback_url": "http://169.254.169.254/x"}, http.StatusBadRequest},
		{"private callback", map[string]any{"config_yaml": smallSearchYAML, "callback_url": "http://10.0.0.8/x"}, http.StatusBadRequest},
		{"invalid run id", map[string]any{"run_id": "a/b", "config_yaml": smallSearchYAML}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/v1/runs", tt.body)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decodeBody(t, rr)["error"])
		})
	}

	rr := doRequest(t, h, http.MethodPost, "/v1/runs", "application/json", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHTTPCreateRunDuplicate(t *testing.T) {
	store, srv := newTestHTTPServer(t, HTTPOptions{})
	body := map[string]any{"run_id": "dup", "config_yaml": smallSearchYAML}

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", body)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", body)
	assert.Equal(t, http.StatusConflict, rr.Code)

	waitForStatus(t, store, "dup", RunStatusCompleted)
}

func TestHTTPCreateRunRateLimited(t *testing.T) {
	_, srv := newTestHTTPServer(t, HTTPOptions{CreateRate: 0.001, CreateBurst: 1})
	h := srv.Handler()

	// an invalid body still spends the token
	rr := doJSON(t, h, http.MethodPost, "/v1/runs", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/v1/runs", map[string]any{})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// reads are never limited
	rr = doRequest(t, h, http.MethodGet, "/v1/runs", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHTTPListRuns(t *testing.T) {
	store, srv := newTestHTTPServer(t, HTTPOptions{})
	for _, id := range []string{"r1", "r2", "r3"} {
		_, err := store.Create(id, RunInput{ConfigYAML: smallSearchYAML})
		require.NoError(t, err)
	}
	_, err := store.SetStatus("r2", RunStatusFailed, "boom")
	require.NoError(t, err)

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/v1/runs?limit=2&offset=1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	runs := body["runs"].([]any)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].(map[string]any)["id"])
	assert.Equal(t, "r3", runs[1].(map[string]any)["id"])
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, 2.0, pagination["limit"])
	assert.Equal(t, 1.0, pagination["offset"])
	assert.Equal(t, 2.0, pagination["count"])

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/v1/runs?status=FAILED", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	runs = decodeBody(t, rr)["runs"].([]any)
	require.Len(t, runs, 1)
	run := runs[0].(map[string]any)
	assert.Equal(t, "r2", run["id"])
	assert.Equal(t, "boom", run["error"])

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/v1/runs?status=sideways", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHTTPRunNotFound(t *testing.T) {
	_, srv := newTestHTTPServer(t, HTTPOptions{})
	h := srv.Handler()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/runs/nope"},
		{http.MethodGet, "/v1/runs/nope/leaderboard"},
		{http.MethodPost, "/v1/runs/nope/stop"},
	} {
		rr := doRequest(t, h, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, tc.path)
	}
}

func TestHTTPLeaderboardBeforeResult(t *testing.T) {
	store, srv := newTestHTTPServer(t, HTTPOptions{})
	_, err := store.Create("waiting", RunInput{ConfigYAML: smallSearchYAML})
	require.NoError(t, err)

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/v1/runs/waiting/leaderboard", "", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
}

func TestHTTPStopRun(t *testing.T) {
	store, srv := newTestHTTPServer(t, HTTPOptions{})
	_, err := store.Create("stoppable", RunInput{ConfigYAML: smallSearchYAML})
	require.NoError(t, err)

	rr := doRequest(t, srv.Handler(), http.MethodPost, "/v1/runs/stoppable/stop", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	run := decodeBody(t, rr)["run"].(map[string]any)
	assert.Equal(t, string(RunStatusCancelled), run["status"])
}

func TestHTTPRequestTooLarge(t *testing.T) {
	_, srv := newTestHTTPServer(t, HTTPOptions{})
	big := strings.Repeat("#", maxConfigBytes+10)
	rr := doRequest(t, srv.Handler(), http.MethodPost, "/v1/runs", "application/x-yaml", []byte(big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

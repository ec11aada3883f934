package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/hptune/internal/config"
	"github.com/copyleftdev/hptune/internal/metrics"
)

const searchSpaceJSON = `{
	"common": [{"name": "", "params": [
		{"name": "kind", "_type": "choice", "_value": ["a", "b"]},
		{"name": "x", "_type": "uniform", "_value": [0, 1], "_initial": 0.5}
	]}]
}`

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Environment: "test",
	}

	// Set up HTTP config
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	// Set up logging
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "console"
	cfg.Logging.Output = "stdout"

	// Set up tuner defaults
	cfg.Tuner.Strategy = "tpe"
	cfg.Tuner.Minimize = true
	cfg.Tuner.StartupTrials = 20
	cfg.Tuner.Candidates = 24
	cfg.Tuner.MaxLocalThreads = 1
	cfg.Tuner.MaxSessions = 4

	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

func newRouter(t *testing.T) (*Server, chi.Router) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func createTuner(t *testing.T, r http.Handler, strategy string) string {
	t.Helper()
	rr := do(t, r, http.MethodPost, "/api/v1/tuners", map[string]interface{}{
		"strategy":     strategy,
		"seed":         7,
		"search_space": json.RawMessage(searchSpaceJSON),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id, ok := decode(t, rr)["tuner_id"].(string)
	require.True(t, ok)
	return id
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil)
	assert.NotNil(t, srv, "Server should be created")
}

func TestRegisterRoutes(t *testing.T) {
	_, r := newRouter(t)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/tuners", true},
		{"GET", "/api/v1/tuners/123", true},
		{"DELETE", "/api/v1/tuners/123", true},
		{"POST", "/api/v1/tuners/123/trials/1", true},
		{"PUT", "/api/v1/tuners/123/trials/1", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // Not registered by server package
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := do(t, r, tt.method, tt.path, nil)
			if tt.shouldExist {
				// Unknown sessions answer 404 with a JSON body; unrouted paths do not.
				assert.NotEqual(t, http.StatusMethodNotAllowed, rr.Code)
				if rr.Code == http.StatusNotFound {
					assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
				}
			} else {
				assert.Equal(t, http.StatusNotFound, rr.Code)
			}
		})
	}
}

func TestTunerLifecycle(t *testing.T) {
	for _, strategy := range []string{"tpe", "localsearch", "blendsearch"} {
		t.Run(strategy, func(t *testing.T) {
			_, r := newRouter(t)
			id := createTuner(t, r, strategy)

			for trial := 0; trial < 5; trial++ {
				rr := do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tuners/%s/trials/%d", id, trial), nil)
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				params := decode(t, rr)["parameters"].(map[string]interface{})
				assert.Contains(t, []interface{}{"a", "b"}, params["kind"])
				x := params["x"].(float64)
				assert.True(t, x >= 0 && x <= 1)

				rr = do(t, r, http.MethodPut, fmt.Sprintf("/api/v1/tuners/%s/trials/%d", id, trial),
					map[string]interface{}{"loss": x, "cost": 1})
				require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
			}

			rr := do(t, r, http.MethodGet, "/api/v1/tuners/"+id, nil)
			require.Equal(t, http.StatusOK, rr.Code)
			status := decode(t, rr)
			assert.Equal(t, id, status["tuner_id"])
			assert.Equal(t, strategy, status["strategy"])
			assert.Equal(t, float64(5), status["generated"])
			assert.Equal(t, float64(5), status["reported"])
			assert.Equal(t, float64(0), status["running"])
			assert.NotNil(t, status["best_loss"])

			rr = do(t, r, http.MethodDelete, "/api/v1/tuners/"+id, nil)
			assert.Equal(t, http.StatusNoContent, rr.Code)
			rr = do(t, r, http.MethodGet, "/api/v1/tuners/"+id, nil)
			assert.Equal(t, http.StatusNotFound, rr.Code)
		})
	}
}

func TestHTTPErrors(t *testing.T) {
	_, r := newRouter(t)
	id := createTuner(t, r, "tpe")
	trial := "/api/v1/tuners/" + id + "/trials/"

	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, trial+"1", nil).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"bad json", http.MethodPost, "/api/v1/tuners", "{", http.StatusBadRequest},
		{"missing space", http.MethodPost, "/api/v1/tuners", map[string]string{}, http.StatusBadRequest},
		{"bad space", http.MethodPost, "/api/v1/tuners", map[string]interface{}{
			"search_space": json.RawMessage(`{"common":[{"name":"a","params":[{"name":"p","_type":"uniform","_value":[1,0]}]}]}`),
		}, http.StatusBadRequest},
		{"unknown strategy", http.MethodPost, "/api/v1/tuners", map[string]interface{}{
			"strategy": "grid", "search_space": json.RawMessage(searchSpaceJSON),
		}, http.StatusBadRequest},
		{"trial not integer", http.MethodPost, trial + "abc", nil, http.StatusBadRequest},
		{"trial running", http.MethodPost, trial + "1", nil, http.StatusConflict},
		{"unknown trial", http.MethodPut, trial + "9", map[string]float64{"loss": 1}, http.StatusNotFound},
		{"missing loss", http.MethodPut, trial + "1", map[string]float64{"cost": 1}, http.StatusBadRequest},
		{"unknown tuner", http.MethodPost, "/api/v1/tuners/nope/trials/1", nil, http.StatusNotFound},
		{"close unknown", http.MethodDelete, "/api/v1/tuners/nope", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode(t, rr)["error"])
		})
	}
}

func TestErrorNamesFailingComponent(t *testing.T) {
	_, r := newRouter(t)
	id := createTuner(t, r, "tpe")

	rr := do(t, r, http.MethodPut, "/api/v1/tuners/"+id+"/trials/3", map[string]float64{"loss": 1})
	require.Equal(t, http.StatusNotFound, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "tpe", body["component"])
	assert.Equal(t, "ReceiveTrialResult", body["operation"])

	rr = do(t, r, http.MethodDelete, "/api/v1/tuners/nope", nil)
	body = decode(t, rr)
	assert.NotContains(t, body, "component")
	assert.NotContains(t, body, "operation")
}

func TestSessionLimit(t *testing.T) {
	srv, r := newRouter(t)
	for i := 0; i < 4; i++ {
		createTuner(t, r, "tpe")
	}
	rr := do(t, r, http.MethodPost, "/api/v1/tuners", map[string]interface{}{
		"search_space": json.RawMessage(searchSpaceJSON),
	})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	require.NoError(t, srv.Close())
	createTuner(t, r, "tpe")
}

func rpc(t *testing.T, r http.Handler, method string, params interface{}) map[string]interface{} {
	t.Helper()
	rr := do(t, r, http.MethodPost, "/rpc", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	return decode(t, rr)
}

func TestJSONRPCFlow(t *testing.T) {
	_, r := newRouter(t)

	resp := rpc(t, r, "tuner.create", map[string]interface{}{
		"strategy":     "blendsearch",
		"search_space": json.RawMessage(searchSpaceJSON),
	})
	require.Nil(t, resp["error"])
	id := resp["result"].(map[string]interface{})["tuner_id"].(string)

	resp = rpc(t, r, "tuner.generate", []interface{}{map[string]interface{}{"tuner_id": id, "trial_id": 0}})
	require.Nil(t, resp["error"])
	params := resp["result"].(map[string]interface{})["parameters"].(map[string]interface{})
	assert.Equal(t, 0.5, params["x"])
	assert.Equal(t, "a", params["kind"])

	resp = rpc(t, r, "tuner.report", map[string]interface{}{"tuner_id": id, "trial_id": 0, "loss": 0.1, "cost": 2})
	require.Nil(t, resp["error"])

	resp = rpc(t, r, "tuner.status", map[string]interface{}{"tuner_id": id})
	require.Nil(t, resp["error"])
	status := resp["result"].(map[string]interface{})
	assert.Equal(t, float64(1), status["reported"])
	assert.Equal(t, 0.1, status["best_loss"])

	resp = rpc(t, r, "tuner.close", map[string]interface{}{"tuner_id": id})
	require.Nil(t, resp["error"])
}

func TestJSONRPCErrors(t *testing.T) {
	_, r := newRouter(t)
	id := rpc(t, r, "tuner.create", map[string]interface{}{
		"search_space": json.RawMessage(searchSpaceJSON),
	})["result"].(map[string]interface{})["tuner_id"].(string)

	tests := []struct {
		name   string
		method string
		params interface{}
		code   float64
	}{
		{"unknown method", "tuner.delete", nil, codeMethodNotFound},
		{"missing params", "tuner.generate", nil, codeInvalidParams},
		{"missing trial", "tuner.generate", map[string]interface{}{"tuner_id": id}, codeInvalidParams},
		{"bad space", "tuner.create", map[string]interface{}{"search_space": map[string]interface{}{}}, codeInvalidParams},
		{"unknown trial", "tuner.report", map[string]interface{}{"tuner_id": id, "trial_id": 3, "loss": 1}, codeServerError},
		{"unknown tuner", "tuner.status", map[string]interface{}{"tuner_id": "nope"}, codeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := rpc(t, r, tt.method, tt.params)
			errObj, ok := resp["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, tt.code, errObj["code"])
			assert.Equal(t, float64(1), resp["id"])
		})
	}

	rr := do(t, r, http.MethodPost, "/rpc", "not json")
	assert.Equal(t, float64(codeParseError), decode(t, rr)["error"].(map[string]interface{})["code"])

	rr = do(t, r, http.MethodPost, "/rpc", `{"jsonrpc":"1.0","id":2,"method":"tuner.status"}`)
	assert.Equal(t, float64(codeInvalidRequest), decode(t, rr)["error"].(map[string]interface{})["code"])
}

func TestClose(t *testing.T) {
	srv, r := newRouter(t)
	createTuner(t, r, "tpe")
	createTuner(t, r, "localsearch")

	err := srv.Close()
	assert.NoError(t, err, "Close should not return an error")
	assert.Empty(t, srv.sessions)
}

func TestCloseReleasesRunningTrials(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	srv := NewServer(testConfig(t), testLogger(t), collector)
	r := chi.NewRouter()
	srv.RegisterRoutes(r)

	running := func() float64 {
		families, err := reg.Gather()
		require.NoError(t, err)
		for _, f := range families {
			if f.GetName() != "hptune_trials_running" {
				continue
			}
			for _, m := range f.GetMetric() {
				return m.GetGauge().GetValue()
			}
		}
		return 0
	}

	id := createTuner(t, r, "tpe")
	for trial := 1; trial <= 3; trial++ {
		rr := do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tuners/%s/trials/%d", id, trial), nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	rr := do(t, r, http.MethodPut, "/api/v1/tuners/"+id+"/trials/1", map[string]interface{}{"loss": 0.5})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	require.Equal(t, 2.0, running())

	rr = do(t, r, http.MethodDelete, "/api/v1/tuners/"+id, nil)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.Equal(t, 0.0, running())
}

func TestRespondWithError(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t), nil)

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{"valid error response", codeInvalidParams, "invalid input", "123", "123"},
		{"nil id", codeServerError, "server error", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			// JSON-RPC errors travel in a 200 response body
			assert.Equal(t, http.StatusOK, rr.Code)

			response := decode(t, rr)
			errObj, ok := response["error"].(map[string]interface{})
			assert.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"], "error code should match")
			assert.Equal(t, tt.message, errObj["message"], "error message should match")
			assert.Equal(t, tt.expectedID, response["id"], "response ID should match")
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(testLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	h := RateLimitMiddleware(0.001, 2)(ok)
	codes := make([]int, 3)
	for i := range codes {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = rr.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	unlimited := RateLimitMiddleware(0, 0)(ok)
	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		unlimited.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", strings.NewReader("")))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

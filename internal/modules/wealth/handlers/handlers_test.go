package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/metrics"
	"github.com/aristath/allocator/internal/modules/wealth"
)

type dpResponse struct {
	Data struct {
		SuccessProbability float64            `json:"success_probability"`
		InitialAction      int                `json:"initial_action"`
		Portfolios         []wealth.Portfolio `json:"portfolios"`
		Policy             [][]int            `json:"policy"`
		Value              [][]float64        `json:"value"`
	} `json:"data"`
	Error string `json:"error"`
}

func newTestRouter() http.Handler {
	log := zerolog.Nop()
	defaults := config.DefaultModelDefaults()
	defaults.QLearning.Epochs = 500

	h := NewHandler(wealth.NewAllocator(log), metrics.NewRegistry(), defaults, log)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func post(t *testing.T, router http.Handler, path, body string) (*httptest.ResponseRecorder, dpResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp dpResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHandleDynamicProgramming(t *testing.T) {
	w, resp := post(t, newTestRouter(), "/wealth/dp", `{
		"mean": [0.05],
		"covariance": [[0.04]],
		"goal": {"initial_wealth": 100, "wealth_goal": 140, "cash_injection": 10, "horizon": 1}
	}`)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)

	assert.InDelta(t, distuv.UnitNormal.Survival(1.25), resp.Data.SuccessProbability, 1e-12)
	assert.Equal(t, 0, resp.Data.InitialAction)
	assert.Len(t, resp.Data.Portfolios, 15, "portfolio count comes from defaults")
	assert.Len(t, resp.Data.Policy, 1)
	assert.Len(t, resp.Data.Value, 2)
}

func TestHandleDynamicProgramming_Errors(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing mean", `{"covariance": [[0.04]]}`, http.StatusBadRequest},
		{"missing covariance", `{"mean": [0.05]}`, http.StatusBadRequest},
		{"dimension mismatch", `{"mean": [0.05, 0.01], "covariance": [[0.04]]}`, http.StatusBadRequest},
		{"negative horizon", `{"mean": [0.05], "covariance": [[0.04]], "goal": {"horizon": -1}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := post(t, router, "/wealth/dp", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleQLearning(t *testing.T) {
	router := newTestRouter()
	body := `{
		"mean": [0.01, 0.03],
		"covariance": [[0.0004, 0], [0, 0.01]],
		"goal": {"initial_wealth": 100, "wealth_goal": 130, "horizon": 3, "num_portfolios": 4, "grid_resolution": 20},
		"hyper_params": {"seed": 11}
	}`

	w, first := post(t, router, "/wealth/q-learning", body)
	require.Equal(t, http.StatusOK, w.Code, first.Error)
	assert.GreaterOrEqual(t, first.Data.SuccessProbability, 0.0)
	assert.LessOrEqual(t, first.Data.SuccessProbability, 1.0)
	assert.Len(t, first.Data.Policy, 3)

	_, second := post(t, router, "/wealth/q-learning", body)
	assert.Equal(t, first.Data.Value, second.Data.Value)
}

func TestHandleQLearning_InvalidHyperParams(t *testing.T) {
	w, resp := post(t, newTestRouter(), "/wealth/q-learning", `{
		"mean": [0.05],
		"covariance": [[0.04]],
		"hyper_params": {"epsilon": 2}
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, resp.Error)
}

func TestRegisterRoutes(t *testing.T) {
	router := newTestRouter()
	for _, path := range []string{"/wealth/dp", "/wealth/q-learning"} {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{}"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusNotFound, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/wealth/dp", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

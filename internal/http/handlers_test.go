package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomslee/ridehail-sim/internal/simulation"
)

func newTestSimulation(t *testing.T) *simulation.Simulation {
	t.Helper()
	cfg := simulation.Default()
	cfg.CitySize = 4
	cfg.VehicleCount = 2
	cfg.BaseDemand = 0.1
	sim, err := simulation.New(cfg)
	require.NoError(t, err)
	return sim
}

func newTestV1Handlers(t *testing.T) *V1Handlers {
	t.Helper()
	return NewV1Handlers(newTestSimulation(t), slog.Default())
}

func decodeEnvelope(t *testing.T, body []byte) APIResponse {
	t.Helper()
	var response APIResponse
	require.NoError(t, json.Unmarshal(body, &response))
	return response
}

func TestControlHandler_Pause(t *testing.T) {
	h := newTestV1Handlers(t)

	body, err := json.Marshal(ControlRequestBody{Kind: "pause"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/control", bytes.NewReader(body))

	h.ControlHandler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeEnvelope(t, w.Body.Bytes())
	assert.True(t, response.Success)
}

func TestControlHandler_SwitchDispatchMethod(t *testing.T) {
	h := newTestV1Handlers(t)

	body, err := json.Marshal(ControlRequestBody{Kind: "switch_dispatch_method", DispatchMethod: "queue_nearest"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/control", bytes.NewReader(body))

	h.ControlHandler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestControlHandler_UnknownKind(t *testing.T) {
	h := newTestV1Handlers(t)

	body, err := json.Marshal(ControlRequestBody{Kind: "levitate"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/control", bytes.NewReader(body))

	h.ControlHandler(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeEnvelope(t, w.Body.Bytes())
	assert.False(t, response.Success)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrorCodeValidation, response.Error.Code)
}

func TestControlHandler_UnknownDispatchMethod(t *testing.T) {
	h := newTestV1Handlers(t)

	body, err := json.Marshal(ControlRequestBody{Kind: "switch_dispatch_method", DispatchMethod: "teleport"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/control", bytes.NewReader(body))

	h.ControlHandler(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestControlHandler_InvalidJSON(t *testing.T) {
	h := newTestV1Handlers(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/control", bytes.NewReader([]byte("{not json")))

	h.ControlHandler(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := decodeEnvelope(t, w.Body.Bytes())
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrorCodeInvalidJSON, response.Error.Code)
}

func TestControlHandler_WrongMethod(t *testing.T) {
	h := newTestV1Handlers(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/control", nil)

	h.ControlHandler(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestLatestObservationHandler(t *testing.T) {
	h := newTestV1Handlers(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/observations", nil)

	h.LatestObservationHandler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeEnvelope(t, w.Body.Bytes())
	assert.True(t, response.Success)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), data["block"])
}

func TestLatestObservationHandler_WrongMethod(t *testing.T) {
	h := newTestV1Handlers(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/observations", nil)

	h.LatestObservationHandler(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthHandler(t *testing.T) {
	h := newTestV1Handlers(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/health", nil)

	h.HealthHandler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeEnvelope(t, w.Body.Bytes())
	assert.True(t, response.Success)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "healthy", data["status"])
}

func TestAPIInfoHandler(t *testing.T) {
	h := newTestV1Handlers(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1", nil)

	h.APIInfoHandler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeEnvelope(t, w.Body.Bytes())
	assert.True(t, response.Success)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)
	endpoints, ok := data["endpoints"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, endpoints, "POST /v1/control")
}

func TestAPIInfoHandler_WrongMethod(t *testing.T) {
	h := newTestV1Handlers(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1", nil)

	h.APIInfoHandler(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tomslee/ridehail-sim/internal/constants"
	"github.com/tomslee/ridehail-sim/internal/dispatch"
	"github.com/tomslee/ridehail-sim/internal/infra/logging"
	"github.com/tomslee/ridehail-sim/internal/simulation"
)

// V1Handlers serves the versioned control/observation API.
type V1Handlers struct {
	sim    *simulation.Simulation
	logger *slog.Logger
}

// NewV1Handlers wires handlers around a running Simulation.
func NewV1Handlers(sim *simulation.Simulation, logger *slog.Logger) *V1Handlers {
	return &V1Handlers{sim: sim, logger: logger}
}

// ControlRequestBody mirrors one ControlMessage of spec section 6 over the
// wire. Kind selects which fields are meaningful.
type ControlRequestBody struct {
	Kind              string  `json:"kind"`
	VehicleCountDelta int     `json:"vehicle_count_delta,omitempty"`
	BaseDemandDelta   float64 `json:"base_demand_delta,omitempty"`
	DispatchMethod    string  `json:"dispatch_method,omitempty"`
}

var controlKindsByName = map[string]simulation.ControlKind{
	"pause":                 simulation.ControlPause,
	"resume":                simulation.ControlResume,
	"stop":                  simulation.ControlStop,
	"adjust_vehicle_count":  simulation.ControlAdjustVehicleCount,
	"adjust_base_demand":    simulation.ControlAdjustBaseDemand,
	"switch_dispatch_method": simulation.ControlSwitchDispatchMethod,
	"reset":                 simulation.ControlReset,
}

var dispatchMethodsByName = map[string]dispatch.Method{
	"immediate_nearest":       dispatch.ImmediateNearest,
	"immediate_batch_nearest": dispatch.ImmediateBatchNearest,
	"queue_nearest":           dispatch.QueueNearest,
}

// ControlHandler applies one control message (POST /v1/control).
func (h *V1Handlers) ControlHandler(w http.ResponseWriter, r *http.Request) {
	requestID := logging.GetRequestID(r.Context())
	rw := NewResponseWriter(w, h.logger, requestID)

	if r.Method != http.MethodPost {
		rw.WriteError(http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, "Method not allowed", "Only POST is supported")
		return
	}

	var body ControlRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rw.WriteError(http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid JSON", "Request body contains invalid JSON")
		return
	}

	kind, ok := controlKindsByName[body.Kind]
	if !ok {
		rw.WriteError(http.StatusBadRequest, ErrorCodeValidation, "Unknown control kind", body.Kind)
		return
	}

	msg := simulation.ControlMessage{
		Kind:              kind,
		VehicleCountDelta: body.VehicleCountDelta,
		BaseDemandDelta:   body.BaseDemandDelta,
	}
	if kind == simulation.ControlSwitchDispatchMethod {
		method, ok := dispatchMethodsByName[body.DispatchMethod]
		if !ok {
			rw.WriteError(http.StatusBadRequest, ErrorCodeValidation, "Unknown dispatch_method", body.DispatchMethod)
			return
		}
		msg.DispatchMethod = method
	}

	h.sim.ApplyControl(msg)

	h.logger.InfoContext(r.Context(), "control message applied",
		slog.String("kind", body.Kind),
		slog.String("request_id", requestID),
		slog.String("component", constants.ComponentHTTPHandler))

	rw.WriteJSON(http.StatusOK, map[string]string{"kind": body.Kind, "message": "control message applied"})
}

// ObservationResponse carries the current block and an optional
// Observation. LatestObservationHandler fills only Block, so Observation
// is omitted from its responses.
type ObservationResponse struct {
	Block       int                    `json:"block"`
	Observation *simulation.Observation `json:"observation,omitempty"`
}

// LatestObservationHandler returns the current block index (GET
// /v1/observations). The websocket feed is the source of per-block detail;
// this is a cheap polling fallback for clients that cannot hold a socket
// open.
func (h *V1Handlers) LatestObservationHandler(w http.ResponseWriter, r *http.Request) {
	requestID := logging.GetRequestID(r.Context())
	rw := NewResponseWriter(w, h.logger, requestID)

	if r.Method != http.MethodGet {
		rw.WriteError(http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, "Method not allowed", "Only GET is supported")
		return
	}

	rw.WriteJSON(http.StatusOK, ObservationResponse{Block: h.sim.Block()})
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Block     int       `json:"block"`
}

// HealthHandler reports liveness (GET /v1/health): the process is healthy
// as long as it can answer, since a Simulation has no external
// dependencies to probe.
func (h *V1Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	requestID := logging.GetRequestID(r.Context())
	rw := NewResponseWriter(w, h.logger, requestID)

	if r.Method != http.MethodGet {
		rw.WriteError(http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, "Method not allowed", "Only GET is supported")
		return
	}

	rw.WriteJSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now(), Block: h.sim.Block()})
}

// APIInfoResponse describes the available endpoints.
type APIInfoResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
}

// APIInfoHandler serves endpoint documentation (GET /v1).
func (h *V1Handlers) APIInfoHandler(w http.ResponseWriter, r *http.Request) {
	requestID := logging.GetRequestID(r.Context())
	rw := NewResponseWriter(w, h.logger, requestID)

	if r.Method != http.MethodGet {
		rw.WriteError(http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, "Method not allowed", "Only GET is supported")
		return
	}

	rw.WriteJSON(http.StatusOK, APIInfoResponse{
		Name:        "Ride-Hail Simulation API",
		Version:     "v1",
		Description: "Control and observation API for a running ride-hail marketplace simulation",
		Endpoints: map[string]string{
			"POST /v1/control":        "Apply a control message (pause, resume, stop, adjust_vehicle_count, adjust_base_demand, switch_dispatch_method, reset)",
			"GET /v1/observations":    "Poll the current block index",
			"GET /v1/health":          "Liveness check",
			"GET /v1":                 "API information",
			"GET /metrics":            "Prometheus metrics endpoint",
			"WebSocket /ws/observations": "Per-block observation feed",
		},
	})
}

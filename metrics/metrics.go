package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomslee/ridehail-sim/internal/constants"
)

const (
	namespace   = constants.MetricsNamespace
	phaseLabel  = "phase"
	methodLabel = "method"
	modeLabel   = "mode"
)

var (
	blockDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_duration_seconds",
			Help:      "Wall-clock duration of one simulation block's Step call",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	vehiclesByPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vehicles_by_phase",
			Help:      "Current vehicle count by phase (P1 idle, P2 dispatched, P3 occupied)",
		},
		[]string{phaseLabel},
	)

	dispatchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_attempts_total",
			Help:      "Dispatch attempts by method",
		},
		[]string{methodLabel},
	)

	dispatchSuccesses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_successes_total",
			Help:      "Dispatch assignments made by method",
		},
		[]string{methodLabel},
	)

	tripWaitBlocks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trip_wait_blocks",
			Help:      "Blocks a completed trip's rider waited before pickup",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	tripRideBlocks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trip_ride_blocks",
			Help:      "Blocks a completed trip's ride lasted, pickup to dropoff",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	equilibrationDeltas = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "equilibration_deltas_total",
			Help:      "Signed vehicle-count or price adjustments applied by equilibration, by mode",
		},
		[]string{modeLabel},
	)

	tripsUnassigned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trips_unassigned",
			Help:      "Trips currently waiting for dispatch",
		},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests served by the control/observation API",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "endpoint", "status"},
	)

	httpErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP errors by type and component",
		},
		[]string{"error_type", "component"},
	)
)

func init() {
	prometheus.MustRegister(
		blockDuration,
		vehiclesByPhase,
		dispatchAttempts,
		dispatchSuccesses,
		tripWaitBlocks,
		tripRideBlocks,
		equilibrationDeltas,
		tripsUnassigned,
		httpRequestDuration,
		httpErrors,
	)
}

// RecordHTTPRequest records one HTTP request's duration, labeled by method,
// endpoint, and status code.
func RecordHTTPRequest(method, endpoint, status string, seconds float64) {
	httpRequestDuration.With(prometheus.Labels{"method": method, "endpoint": endpoint, "status": status}).Observe(seconds)
}

// IncError increments the error counter for an error type/component pair.
func IncError(errorType, component string) {
	httpErrors.With(prometheus.Labels{"error_type": errorType, "component": component}).Inc()
}

// BlockDuration records how long one Step call took.
func BlockDuration(seconds float64) {
	blockDuration.Observe(seconds)
}

// VehiclesByPhase sets the current gauge for a phase label ("P1", "P2", "P3").
func VehiclesByPhase(phase string, count float64) {
	vehiclesByPhase.With(prometheus.Labels{phaseLabel: phase}).Set(count)
}

// DispatchAttempt records one dispatch pass for a method label.
func DispatchAttempt(method string) {
	dispatchAttempts.With(prometheus.Labels{methodLabel: method}).Inc()
}

// DispatchSuccess records one successful assignment for a method label.
func DispatchSuccess(method string) {
	dispatchSuccesses.With(prometheus.Labels{methodLabel: method}).Inc()
}

// CompletedTrip records a completed trip's wait and ride durations.
func CompletedTrip(waitBlocks, rideBlocks int) {
	tripWaitBlocks.Observe(float64(waitBlocks))
	tripRideBlocks.Observe(float64(rideBlocks))
}

// Equilibration records one equilibration adjustment for a mode label.
func Equilibration(mode string, delta float64) {
	equilibrationDeltas.With(prometheus.Labels{modeLabel: mode}).Add(delta)
}

// TripsUnassigned sets the current count of undispatched waiting trips.
func TripsUnassigned(count float64) {
	tripsUnassigned.Set(count)
}

package simulation

import (
	"github.com/tomslee/ridehail-sim/internal/domain"
)

// VehicleObservation is the immutable per-vehicle slice of an Observation.
type VehicleObservation struct {
	Index     int                  `json:"index"`
	Location  domain.Intersection  `json:"location"`
	Direction domain.Direction     `json:"direction"`
	Phase     domain.VehiclePhase  `json:"phase"`
	TripIndex *int                 `json:"trip_index,omitempty"`
}

// CompletedTripObservation describes one trip that completed in the
// block an Observation was taken.
type CompletedTripObservation struct {
	Index       int                 `json:"index"`
	Origin      domain.Intersection `json:"origin"`
	Destination domain.Intersection `json:"destination"`
	WaitBlocks  int                 `json:"wait_blocks"`
	RideBlocks  int                 `json:"ride_blocks"`
	Fare        float64             `json:"fare"`
}

// Observation is the immutable snapshot emitted once per block (spec
// section 6). Front-ends consume these values only; nothing here is a
// reference into live engine state.
type Observation struct {
	Block int `json:"block"`

	Vehicles       []VehicleObservation        `json:"vehicles"`
	CompletedTrips []CompletedTripObservation  `json:"completed_trips,omitempty"`

	P1Fraction float64 `json:"p1_fraction"`
	P2Fraction float64 `json:"p2_fraction"`
	P3Fraction float64 `json:"p3_fraction"`

	TrailingMeanWaitBlocks float64 `json:"trailing_mean_wait_blocks"`
	TrailingMeanRideBlocks float64 `json:"trailing_mean_ride_blocks"`
	DispatchSuccessRate    float64 `json:"dispatch_success_rate"`

	VehicleCount int     `json:"vehicle_count"`
	Price        float64 `json:"price"`
	RequestRate  float64 `json:"request_rate"`

	EquilibrationClamped bool `json:"equilibration_clamped"`
}

// Package trip implements the trip lifecycle of spec section 4.3: origin,
// destination, phase machine, and the block-stamped timers derived from it.
package trip

import (
	"github.com/tomslee/ridehail-sim/internal/domain"
)

// Trip is a single ride request moving through UNASSIGNED -> WAITING ->
// RIDING -> COMPLETED (or CANCELLED, when explicitly enabled).
type Trip struct {
	Index       int
	Origin      domain.Intersection
	Destination domain.Intersection
	Phase       domain.TripPhase

	AssignedVehicle *int

	BlockUnassigned int
	BlockWaiting    *int
	BlockRiding     *int
	BlockCompleted  *int

	// Fare is evaluated at completion (see ComputeFare).
	Fare float64
}

// New constructs a trip in UNASSIGNED, stamped at the given block.
func New(index int, origin, destination domain.Intersection, block int) *Trip {
	return &Trip{
		Index:           index,
		Origin:          origin,
		Destination:     destination,
		Phase:           domain.TripUnassigned,
		BlockUnassigned: block,
	}
}

// UpdatePhase enforces the monotone trip phase machine and stamps block
// at the phase it transitions into.
func (t *Trip) UpdatePhase(to domain.TripPhase, block int) bool {
	if !domain.CanTransitionTo(t.Phase, to) {
		return false
	}
	t.Phase = to
	switch to {
	case domain.TripWaiting:
		b := block
		t.BlockWaiting = &b
	case domain.TripRiding:
		b := block
		t.BlockRiding = &b
	case domain.TripCompleted:
		b := block
		t.BlockCompleted = &b
	}
	return true
}

// WaitBlocks returns the number of blocks between UNASSIGNED and RIDING,
// or (0, false) if the trip has not yet reached RIDING.
func (t *Trip) WaitBlocks() (int, bool) {
	if t.BlockRiding == nil {
		return 0, false
	}
	return *t.BlockRiding - t.BlockUnassigned, true
}

// RideBlocks returns the number of blocks between RIDING and COMPLETED,
// or (0, false) if the trip has not yet completed.
func (t *Trip) RideBlocks() (int, bool) {
	if t.BlockCompleted == nil || t.BlockRiding == nil {
		return 0, false
	}
	return *t.BlockCompleted - *t.BlockRiding, true
}

// ComputeFare prices a completed trip at a flat per-block rate. It is
// called by the simulation driver once, at the COMPLETED transition,
// using the price in effect that block.
func ComputeFare(rideDistance int, price float64) float64 {
	return price * float64(rideDistance)
}

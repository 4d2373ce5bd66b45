// Package vehicle implements the per-vehicle phase machine and one-block
// movement policy of spec section 4.2: position, direction, phase, and
// the pickup dwell countdown. A Vehicle is owned exclusively by the
// simulation driver; nothing else mutates it, so unlike the teacher's
// elevator.State it carries no internal mutex — the engine's scheduling
// model is single-threaded and strictly ordered (spec section 5), not the
// teacher's one-goroutine-per-agent model.
package vehicle

import (
	"math/rand"

	"github.com/tomslee/ridehail-sim/internal/domain"
	"github.com/tomslee/ridehail-sim/internal/geometry"
)

// Vehicle is a single fleet member. CurrentTrip and ForwardDispatchedNext
// are trip-table indices, never back-references to a *trip.Trip value —
// all cross-referencing goes through the simulation's owning tables.
type Vehicle struct {
	Index                 int
	Location              domain.Intersection
	Direction             domain.Direction
	Phase                 domain.VehiclePhase
	CurrentTrip           *int
	ForwardDispatchedNext *int
	PickupCountdown       *int

	// Removed marks a vehicle evicted by supply equilibration (spec
	// section 4.8). A removed vehicle's index is never reused; the
	// simulation simply excludes it from every subsequent block.
	Removed bool
}

// New creates an idle vehicle at start, facing North by convention.
func New(index int, start domain.Intersection) *Vehicle {
	return &Vehicle{
		Index:     index,
		Location:  start,
		Direction: domain.North,
		Phase:     domain.VehicleIdle,
	}
}

// AdvanceOneBlock computes the vehicle's direction for this block and
// steps it once, per the direction policy of spec section 4.2. target is
// the pickup location (phase P2) or dropoff location (phase P3); it is
// ignored in phase P1. idleVehiclesMoving gates whether idle vehicles roam.
func (v *Vehicle) AdvanceOneBlock(rng *rand.Rand, grid *geometry.Grid, idleVehiclesMoving bool, target domain.Intersection) {
	switch v.Phase {
	case domain.VehicleIdle:
		if !idleVehiclesMoving {
			return
		}
		v.Direction = v.nextIdleDirection(rng)
		v.Location = grid.Step(v.Location, v.Direction)

	case domain.VehicleDispatched, domain.VehicleOccupied:
		if v.Location.IsEqual(target) {
			// Dwelling: already at pickup or sitting exactly on dropoff
			// the same block it was reached; the simulation's arrivals
			// step handles the phase transition.
			return
		}
		dir, ok := v.greedyDirection(rng, grid, target)
		if !ok {
			return
		}
		v.Direction = dir
		v.Location = grid.Step(v.Location, v.Direction)
	}
}

// nextIdleDirection implements "with equal probability keep direction or
// choose any direction that is not a reversal".
func (v *Vehicle) nextIdleDirection(rng *rand.Rand) domain.Direction {
	if rng.Intn(2) == 0 {
		return v.Direction
	}

	forbidden := v.Direction.Opposite()
	choices := make([]domain.Direction, 0, 3)
	for _, d := range domain.Directions {
		if d != forbidden {
			choices = append(choices, d)
		}
	}
	return choices[rng.Intn(len(choices))]
}

// greedyDirection picks an axis that reduces taxicab distance to target,
// breaking ties between the two axes uniformly when both are available.
func (v *Vehicle) greedyDirection(rng *rand.Rand, grid *geometry.Grid, target domain.Intersection) (domain.Direction, bool) {
	citySize := grid.CitySize()

	xDir, xOK := axisDirection(citySize, v.Location.X, target.X, domain.East, domain.West)
	yDir, yOK := axisDirection(citySize, v.Location.Y, target.Y, domain.North, domain.South)

	switch {
	case xOK && yOK:
		if rng.Intn(2) == 0 {
			return xDir, true
		}
		return yDir, true
	case xOK:
		return xDir, true
	case yOK:
		return yDir, true
	default:
		return v.Direction, false
	}
}

// axisDirection returns the direction that shortens the wrapped distance
// from `from` to `to` along one axis, and whether any movement is needed.
func axisDirection(citySize, from, to int, increasing, decreasing domain.Direction) (domain.Direction, bool) {
	diff := (to - from) % citySize
	if diff > citySize/2 {
		diff -= citySize
	}
	if diff < -citySize/2 {
		diff += citySize
	}
	if diff == 0 {
		return increasing, false
	}
	if diff > 0 {
		return increasing, true
	}
	return decreasing, true
}

// UpdatePhase enforces the legal phase transitions P1->P2, P2->P3, P3->P1,
// and P3->P2 (forward dispatch), resetting PickupCountdown to absent on
// every transition out of P2.
func (v *Vehicle) UpdatePhase(to domain.VehiclePhase) bool {
	if !legalTransition(v.Phase, to) {
		return false
	}
	if v.Phase == domain.VehicleDispatched {
		v.PickupCountdown = nil
	}
	v.Phase = to
	return true
}

func legalTransition(from, to domain.VehiclePhase) bool {
	switch from {
	case domain.VehicleIdle:
		return to == domain.VehicleDispatched
	case domain.VehicleDispatched:
		return to == domain.VehicleOccupied
	case domain.VehicleOccupied:
		return to == domain.VehicleIdle || to == domain.VehicleDispatched
	default:
		return false
	}
}

// ArmPickupCountdown sets the dwell counter to pickupTime on first arrival
// at the pickup location. It is a no-op if the countdown is already set.
func (v *Vehicle) ArmPickupCountdown(pickupTime int) {
	if v.PickupCountdown == nil {
		n := pickupTime
		v.PickupCountdown = &n
	}
}

// TickPickupCountdown decrements the dwell counter by one block and
// reports whether it has reached zero (pickup complete this block).
func (v *Vehicle) TickPickupCountdown() bool {
	if v.PickupCountdown == nil {
		return false
	}
	if *v.PickupCountdown > 0 {
		*v.PickupCountdown--
	}
	return *v.PickupCountdown == 0
}

// IsIdle reports whether the vehicle is in phase P1.
func (v *Vehicle) IsIdle() bool {
	return v.Phase == domain.VehicleIdle
}

// Remove marks the vehicle as evicted. Eviction is only ever applied to
// an idle (P1) vehicle; the simulation driver enforces that before calling
// this method.
func (v *Vehicle) Remove() {
	v.Removed = true
}

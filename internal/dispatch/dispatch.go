// Package dispatch implements the matching policies of spec section 4.5:
// candidate selection between unmatched trips and idle vehicles, and the
// orthogonal forward-dispatch modifier. It is expressed as the "capability"
// design note of spec section 9 — a single Assign operation over a
// tagged-variant policy chosen once at configuration time, grounded on
// the teacher's manager.go elevator-selection flow (requestedElevator /
// chooseElevatorWithTimeout) generalized from "one elevator per request"
// to deterministic batch and queued matching.
package dispatch

import (
	"math/rand"
	"sort"

	"github.com/tomslee/ridehail-sim/internal/domain"
	"github.com/tomslee/ridehail-sim/internal/geometry"
)

// Method selects the matching policy of spec section 4.5.
type Method int

const (
	// ImmediateNearest assigns each trip, in arrival order, to its
	// nearest idle vehicle (greedy, per-request).
	ImmediateNearest Method = iota
	// ImmediateBatchNearest computes a globally lower-total-distance
	// assignment between all unmatched trips and idle vehicles.
	ImmediateBatchNearest
	// QueueNearest behaves like ImmediateNearest, except a surplus of
	// waiting trips over idle vehicles is expected and unexceptional:
	// the leftover trips simply retry next block.
	QueueNearest
)

func (m Method) String() string {
	switch m {
	case ImmediateNearest:
		return "immediate_nearest"
	case ImmediateBatchNearest:
		return "immediate_batch_nearest"
	case QueueNearest:
		return "queue_nearest"
	default:
		return "unknown"
	}
}

// Candidate is an idle (or forward-dispatch-eligible) vehicle available
// for assignment this block.
type Candidate struct {
	VehicleIndex int
	Location     domain.Intersection
}

// Request is a trip waiting to be matched, identified by its origin.
type Request struct {
	TripIndex int
	Origin    domain.Intersection
}

// Assignment pairs a matched trip with the vehicle dispatched to it.
type Assignment struct {
	VehicleIndex int
	TripIndex    int
	Distance     int
}

// Dispatcher holds the configured policy and forward-dispatch modifier.
type Dispatcher struct {
	Method                 Method
	ForwardDispatchEnabled bool
	ForwardDispatchHorizon int
}

// New constructs a Dispatcher for the given method; forward dispatch is
// off by default and enabled separately via EnableForwardDispatch.
func New(method Method) *Dispatcher {
	return &Dispatcher{Method: method}
}

// EnableForwardDispatch turns on the forward-dispatch modifier with the
// given bounded horizon (in blocks of remaining distance to dropoff).
func (d *Dispatcher) EnableForwardDispatch(horizon int) {
	d.ForwardDispatchEnabled = true
	d.ForwardDispatchHorizon = horizon
}

// Dispatch matches waiting requests to idle candidates under the
// configured method. It returns one Assignment per matched pair; any
// request left over (fewer candidates than requests) is counted in
// deferred and remains unassigned this block, to retry next block —
// the base engine never cancels a trip for lack of a vehicle, whichever
// method is configured, since spec's non-goals exclude per-trip timeouts.
func (d *Dispatcher) Dispatch(rng *rand.Rand, grid *geometry.Grid, idle []Candidate, waiting []Request) (assignments []Assignment, deferred int) {
	switch d.Method {
	case ImmediateBatchNearest:
		return batchNearest(grid, idle, waiting)
	default: // ImmediateNearest, QueueNearest
		return sequentialNearest(grid, idle, waiting)
	}
}

// sequentialNearest implements IMMEDIATE_NEAREST / QUEUE_NEAREST: for each
// request in arrival order, pick the closest remaining idle candidate,
// ties broken by lowest vehicle index.
func sequentialNearest(grid *geometry.Grid, idle []Candidate, waiting []Request) (assignments []Assignment, deferred int) {
	available := make([]Candidate, len(idle))
	copy(available, idle)
	sort.Slice(available, func(i, j int) bool { return available[i].VehicleIndex < available[j].VehicleIndex })

	taken := make(map[int]bool, len(available))

	for _, req := range waiting {
		best := -1
		bestDist := 0
		for i, c := range available {
			if taken[c.VehicleIndex] {
				continue
			}
			dist := grid.Distance(c.Location, req.Origin)
			if best == -1 || dist < bestDist {
				best = i
				bestDist = dist
			}
		}
		if best == -1 {
			deferred++
			continue
		}
		taken[available[best].VehicleIndex] = true
		assignments = append(assignments, Assignment{
			VehicleIndex: available[best].VehicleIndex,
			TripIndex:    req.TripIndex,
			Distance:     bestDist,
		})
	}
	return assignments, deferred
}

// batchNearest implements IMMEDIATE_BATCH_NEAREST: a deterministic greedy
// construction over all (request, candidate) pairs sorted by distance,
// then lexicographically by (trip index, vehicle index). Taking pairs in
// globally-increasing distance order can still lose to the sequential
// policy on some inputs, so the sequential result on the same inputs is
// computed as well and returned instead whenever its total distance is
// strictly lower; the returned total therefore never exceeds it.
func batchNearest(grid *geometry.Grid, idle []Candidate, waiting []Request) (assignments []Assignment, deferred int) {
	type pair struct {
		tripIndex    int
		vehicleIndex int
		location     domain.Intersection
		origin       domain.Intersection
		distance     int
	}

	pairs := make([]pair, 0, len(idle)*len(waiting))
	for _, req := range waiting {
		for _, c := range idle {
			pairs = append(pairs, pair{
				tripIndex:    req.TripIndex,
				vehicleIndex: c.VehicleIndex,
				location:     c.Location,
				origin:       req.Origin,
				distance:     grid.Distance(c.Location, req.Origin),
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].distance != pairs[j].distance {
			return pairs[i].distance < pairs[j].distance
		}
		if pairs[i].tripIndex != pairs[j].tripIndex {
			return pairs[i].tripIndex < pairs[j].tripIndex
		}
		return pairs[i].vehicleIndex < pairs[j].vehicleIndex
	})

	tripTaken := make(map[int]bool, len(waiting))
	vehicleTaken := make(map[int]bool, len(idle))

	for _, p := range pairs {
		if tripTaken[p.tripIndex] || vehicleTaken[p.vehicleIndex] {
			continue
		}
		tripTaken[p.tripIndex] = true
		vehicleTaken[p.vehicleIndex] = true
		assignments = append(assignments, Assignment{
			VehicleIndex: p.vehicleIndex,
			TripIndex:    p.tripIndex,
			Distance:     p.distance,
		})
	}

	for _, req := range waiting {
		if !tripTaken[req.TripIndex] {
			deferred++
		}
	}

	// Deterministic output order: by trip index, matching arrival order.
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].TripIndex < assignments[j].TripIndex })

	seq, seqDeferred := sequentialNearest(grid, idle, waiting)
	seqTotal, batchTotal := 0, 0
	for _, a := range seq {
		seqTotal += a.Distance
	}
	for _, a := range assignments {
		batchTotal += a.Distance
	}
	if seqTotal < batchTotal {
		return seq, seqDeferred
	}
	return assignments, deferred
}

// AssignForward matches the pending trip pool against vehicles that are
// eligible for a second, forward-dispatched booking (occupied, within the
// configured horizon of completing their current trip, and not already
// carrying a forward-dispatch assignment). It reuses the same policy as
// Dispatch so forward dispatch composes with whichever base method is
// configured.
func (d *Dispatcher) AssignForward(grid *geometry.Grid, eligible []Candidate, waiting []Request) (assignments []Assignment, deferred int) {
	if !d.ForwardDispatchEnabled {
		return nil, 0
	}
	if d.Method == ImmediateBatchNearest {
		return batchNearest(grid, eligible, waiting)
	}
	return sequentialNearest(grid, eligible, waiting)
}

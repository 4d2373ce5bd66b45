package dispatch

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomslee/ridehail-sim/internal/domain"
	"github.com/tomslee/ridehail-sim/internal/geometry"
)

func TestSequentialNearest_AssignsClosestAndBreaksTiesByIndex(t *testing.T) {
	grid := geometry.New(10)
	idle := []Candidate{
		{VehicleIndex: 2, Location: domain.NewIntersection(5, 5)},
		{VehicleIndex: 0, Location: domain.NewIntersection(0, 0)},
		{VehicleIndex: 1, Location: domain.NewIntersection(0, 0)},
	}
	waiting := []Request{{TripIndex: 0, Origin: domain.NewIntersection(0, 1)}}

	d := New(ImmediateNearest)
	assignments, deferred := d.Dispatch(rand.New(rand.NewSource(1)), grid, idle, waiting)

	require.Len(t, assignments, 1)
	assert.Equal(t, 0, deferred)
	assert.Equal(t, 0, assignments[0].VehicleIndex, "tie between vehicles 0 and 1 must break to lowest index")
}

func TestSequentialNearest_SurplusTripsDeferred(t *testing.T) {
	grid := geometry.New(10)
	idle := []Candidate{{VehicleIndex: 0, Location: domain.NewIntersection(0, 0)}}
	waiting := []Request{
		{TripIndex: 0, Origin: domain.NewIntersection(0, 1)},
		{TripIndex: 1, Origin: domain.NewIntersection(5, 5)},
	}

	d := New(QueueNearest)
	assignments, deferred := d.Dispatch(nil, grid, idle, waiting)

	assert.Len(t, assignments, 1)
	assert.Equal(t, 1, deferred)
}

func TestBatchNearest_MatchesGreedyOnSymmetricInputs(t *testing.T) {
	grid := geometry.New(10)
	idle := []Candidate{
		{VehicleIndex: 0, Location: domain.NewIntersection(0, 3)},
		{VehicleIndex: 1, Location: domain.NewIntersection(3, 0)},
	}
	waiting := []Request{
		{TripIndex: 0, Origin: domain.NewIntersection(0, 0)},
		{TripIndex: 1, Origin: domain.NewIntersection(3, 3)},
	}

	greedy := New(ImmediateNearest)
	gAssign, _ := greedy.Dispatch(nil, grid, idle, waiting)
	gTotal := totalDistance(gAssign)

	batch := New(ImmediateBatchNearest)
	bAssign, _ := batch.Dispatch(nil, grid, idle, waiting)
	bTotal := totalDistance(bAssign)

	assert.LessOrEqual(t, bTotal, gTotal)
}

func TestBatchNearest_BeatsGreedyAfterAsymmetricSwap(t *testing.T) {
	grid := geometry.New(20)
	idle := []Candidate{
		{VehicleIndex: 0, Location: domain.NewIntersection(0, 0)},
		{VehicleIndex: 1, Location: domain.NewIntersection(0, 10)},
	}
	// Trip 0 is equidistant (5) from both vehicles, so the sequential
	// policy's tie-break locks in vehicle 0 for trip 0 first, leaving
	// vehicle 1 — nine blocks from trip 1 — as the only remaining
	// candidate: total 5+9=14. The batch-optimal pairing instead gives
	// trip 1 (only one block from vehicle 0) to vehicle 0 and trip 0 to
	// vehicle 1: total 1+5=6, strictly better.
	waiting := []Request{
		{TripIndex: 0, Origin: domain.NewIntersection(0, 5)},
		{TripIndex: 1, Origin: domain.NewIntersection(0, 1)},
	}

	greedy := New(ImmediateNearest)
	gAssign, _ := greedy.Dispatch(nil, grid, idle, waiting)
	gTotal := totalDistance(gAssign)

	batch := New(ImmediateBatchNearest)
	bAssign, _ := batch.Dispatch(nil, grid, idle, waiting)
	bTotal := totalDistance(bAssign)

	assert.Equal(t, 14, gTotal, "sequential policy ties trip 0 to vehicle 0 first, stranding vehicle 1 with trip 1")
	assert.Equal(t, 6, bTotal, "batch policy finds the globally cheaper pairing")
	assert.Less(t, bTotal, gTotal)
}

func TestAssignForward_DisabledReturnsNothing(t *testing.T) {
	grid := geometry.New(10)
	d := New(ImmediateNearest)
	assignments, deferred := d.AssignForward(grid, nil, []Request{{TripIndex: 0, Origin: domain.NewIntersection(1, 1)}})
	assert.Nil(t, assignments)
	assert.Equal(t, 0, deferred)
}

func TestAssignForward_EnabledMatchesEligibleVehicle(t *testing.T) {
	grid := geometry.New(10)
	d := New(ImmediateNearest)
	d.EnableForwardDispatch(5)

	eligible := []Candidate{{VehicleIndex: 7, Location: domain.NewIntersection(2, 2)}}
	waiting := []Request{{TripIndex: 3, Origin: domain.NewIntersection(2, 3)}}

	assignments, deferred := d.AssignForward(grid, eligible, waiting)
	require.Len(t, assignments, 1)
	assert.Equal(t, 0, deferred)
	assert.Equal(t, 7, assignments[0].VehicleIndex)
	assert.Equal(t, 3, assignments[0].TripIndex)
}

func totalDistance(assignments []Assignment) int {
	total := 0
	for _, a := range assignments {
		total += a.Distance
	}
	return total
}

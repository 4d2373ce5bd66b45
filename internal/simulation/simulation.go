// Package simulation implements the central driver of spec section 4.6:
// it owns the vehicle and trip tables, the RNG, and the history, and
// advances them one block at a time in the normative Move -> Arrivals ->
// Generate -> Dispatch -> Sample -> Equilibrate -> Emit order. It is
// grounded on the teacher's internal/manager/manager.go (struct shape,
// RWMutex-guarded collections, logger-with-component pattern) and
// internal/elevator/elevator.go's switchOn/Run loop shape, adapted from
// an asynchronous goroutine loop to a synchronous Step() called once per
// block — spec section 5 specifies a single-threaded, cooperative,
// strictly-ordered scheduler, not the teacher's one-goroutine-per-agent
// model.
package simulation

import (
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/tomslee/ridehail-sim/internal/constants"
	"github.com/tomslee/ridehail-sim/internal/demand"
	"github.com/tomslee/ridehail-sim/internal/dispatch"
	"github.com/tomslee/ridehail-sim/internal/domain"
	"github.com/tomslee/ridehail-sim/internal/equilibrium"
	"github.com/tomslee/ridehail-sim/internal/geometry"
	"github.com/tomslee/ridehail-sim/internal/history"
	"github.com/tomslee/ridehail-sim/internal/trip"
	"github.com/tomslee/ridehail-sim/internal/vehicle"
	"github.com/tomslee/ridehail-sim/metrics"
)

// Simulation owns every mutable piece of one run. It is not safe for
// concurrent Step calls; the mutex guards only the fields a concurrently
// running observer (the websocket feed) reads between blocks.
type Simulation struct {
	mu sync.RWMutex

	cfg Config

	rng        *rand.Rand
	grid       *geometry.Grid
	dispatcher *dispatch.Dispatcher
	history    *history.History

	vehicles []*vehicle.Vehicle
	trips    []*trip.Trip

	block int

	paused  bool
	stopped bool

	logger *slog.Logger
}

// New constructs a Simulation ready to Step, validating cfg first.
func New(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var seed int64
	if cfg.RandomNumberSeed != nil {
		seed = *cfg.RandomNumberSeed
	} else {
		seed = time.Now().UnixNano()
	}

	s := &Simulation{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(seed)),
		grid:       geometry.New(cfg.CitySize),
		dispatcher: dispatch.New(cfg.DispatchMethod),
		history:    history.New(cfg.TrailingWindow, cfg.ResultsWindow),
		logger:     slog.With(slog.String("component", constants.ComponentSimulation)),
	}
	if cfg.ForwardDispatchEnabled {
		s.dispatcher.EnableForwardDispatch(cfg.ForwardDispatchHorizon)
	}

	for i := 0; i < cfg.VehicleCount; i++ {
		s.vehicles = append(s.vehicles, s.spawnVehicle())
	}

	return s, nil
}

func (s *Simulation) spawnVehicle() *vehicle.Vehicle {
	index := len(s.vehicles)
	start := geometry.RandomIntersection(s.rng, s.cfg.CitySize, 0)
	v := vehicle.New(index, start)
	v.Direction = domain.Directions[s.rng.Intn(len(domain.Directions))]
	return v
}

// Block returns the index of the block that will run on the next Step.
func (s *Simulation) Block() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.block
}

// Done reports whether the run has reached time_blocks or a stop control
// message has landed; callers driving their own Step loop (rather than
// calling Run) use this to decide when to stop stepping.
func (s *Simulation) Done() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped || s.block >= s.cfg.TimeBlocks
}

// Paused reports whether a pause control message is in effect; callers
// driving their own Step loop skip Step while paused rather than busy-loop
// inside the engine.
func (s *Simulation) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// InjectTrip appends a trip with the given origin/destination to the
// unmatched pool, stamped at the current block, bypassing the demand
// generator. Used by tests and by harnesses driving a scripted scenario.
func (s *Simulation) InjectTrip(origin, destination domain.Intersection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := trip.New(len(s.trips), origin, destination, s.block)
	s.trips = append(s.trips, t)
	return t.Index
}

// Run advances the simulation until time_blocks is reached or a control
// message requests stop, returning every emitted observation.
func (s *Simulation) Run() ([]Observation, error) {
	observations := make([]Observation, 0, s.cfg.TimeBlocks)
	for {
		s.mu.RLock()
		done := s.stopped || s.block >= s.cfg.TimeBlocks
		paused := s.paused
		s.mu.RUnlock()
		if done {
			return observations, nil
		}
		if paused {
			time.Sleep(time.Millisecond)
			continue
		}
		obs, err := s.Step()
		if err != nil {
			return observations, err
		}
		observations = append(observations, obs)
	}
}

// Step advances the simulation by exactly one block, in the normative
// order of spec section 4.6, and returns the block's observation.
func (s *Simulation) Step() (Observation, error) {
	started := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.OpenTripMetricBucket()

	s.move()
	if err := s.arrivals(); err != nil {
		return Observation{}, err
	}
	s.generate()
	dispatchAttempts, dispatchSuccesses, err := s.dispatchBlock()
	if err != nil {
		return Observation{}, err
	}
	s.sample(dispatchAttempts, dispatchSuccesses)
	clamped := s.equilibrateIfDue()

	obs := s.emit(clamped)
	s.block++
	metrics.BlockDuration(time.Since(started).Seconds())
	return obs, nil
}

// vehiclePhaseInvariantError reports an illegal vehicle phase transition,
// naming the offending vehicle and block per spec.md's invariant-violation
// diagnostic requirement.
func vehiclePhaseInvariantError(v *vehicle.Vehicle, to domain.VehiclePhase, block int) error {
	return domain.NewInvariantError("illegal vehicle phase transition", nil).
		WithContext("vehicle_index", v.Index).
		WithContext("from_phase", v.Phase.String()).
		WithContext("to_phase", to.String()).
		WithContext("block", block)
}

// tripPhaseInvariantError reports an illegal trip phase transition, naming
// the offending trip and block.
func tripPhaseInvariantError(t *trip.Trip, to domain.TripPhase, block int) error {
	return domain.NewInvariantError("illegal trip phase transition", nil).
		WithContext("trip_index", t.Index).
		WithContext("from_phase", t.Phase.String()).
		WithContext("to_phase", to.String()).
		WithContext("block", block)
}

// move implements step 1: every vehicle advances one block.
func (s *Simulation) move() {
	for _, v := range s.vehicles {
		if v.Removed {
			continue
		}
		target := v.Location
		if v.CurrentTrip != nil {
			t := s.trips[*v.CurrentTrip]
			switch v.Phase {
			case domain.VehicleDispatched:
				target = t.Origin
			case domain.VehicleOccupied:
				target = t.Destination
			}
		}
		v.AdvanceOneBlock(s.rng, s.grid, s.cfg.IdleVehiclesMoving, target)
	}
}

// arrivals implements step 2: dropoffs resolve before pickups so a
// vehicle completing a trip may be considered idle by dispatch this block.
// An illegal phase transition is a spec.md invariant violation and is
// fatal to the run.
func (s *Simulation) arrivals() error {
	for _, v := range s.vehicles {
		if v.Removed || v.Phase != domain.VehicleOccupied || v.CurrentTrip == nil {
			continue
		}
		t := s.trips[*v.CurrentTrip]
		if !v.Location.IsEqual(t.Destination) {
			continue
		}

		rideDistance := s.grid.Distance(t.Origin, t.Destination)
		t.Fare = trip.ComputeFare(rideDistance, s.cfg.Price)
		if !t.UpdatePhase(domain.TripCompleted, s.block) {
			return tripPhaseInvariantError(t, domain.TripCompleted, s.block)
		}

		waitBlocks, _ := t.WaitBlocks()
		rideBlocks, _ := t.RideBlocks()
		s.history.CompleteTrip(waitBlocks, rideBlocks)
		metrics.CompletedTrip(waitBlocks, rideBlocks)

		if v.ForwardDispatchedNext != nil {
			next := *v.ForwardDispatchedNext
			v.ForwardDispatchedNext = nil
			v.CurrentTrip = &next
			if !v.UpdatePhase(domain.VehicleDispatched) {
				return vehiclePhaseInvariantError(v, domain.VehicleDispatched, s.block)
			}
		} else {
			v.CurrentTrip = nil
			if !v.UpdatePhase(domain.VehicleIdle) {
				return vehiclePhaseInvariantError(v, domain.VehicleIdle, s.block)
			}
		}
	}

	for _, v := range s.vehicles {
		if v.Removed || v.Phase != domain.VehicleDispatched || v.CurrentTrip == nil {
			continue
		}
		t := s.trips[*v.CurrentTrip]
		if err := s.tryPickup(v, t); err != nil {
			return err
		}
	}
	return nil
}

// tryPickup implements the pickup-dwell protocol of spec section 4.2: on
// first arrival at the trip's origin, arm the countdown (and, with
// pickup_time = 0, transition the same block); on every later visit,
// decrement it and transition when it reaches zero. A no-op if the
// vehicle is not yet at the pickup location.
func (s *Simulation) tryPickup(v *vehicle.Vehicle, t *trip.Trip) error {
	if !v.Location.IsEqual(t.Origin) {
		return nil
	}

	var ready bool
	if v.PickupCountdown == nil {
		v.ArmPickupCountdown(s.cfg.PickupTime)
		if s.cfg.PickupTime == 0 {
			ready = v.TickPickupCountdown()
		}
	} else {
		ready = v.TickPickupCountdown()
	}

	if ready {
		if !v.UpdatePhase(domain.VehicleOccupied) {
			return vehiclePhaseInvariantError(v, domain.VehicleOccupied, s.block)
		}
		if !t.UpdatePhase(domain.TripRiding, s.block) {
			return tripPhaseInvariantError(t, domain.TripRiding, s.block)
		}
	}
	return nil
}

// generate implements step 3: new requests join the unmatched pool.
func (s *Simulation) generate() {
	rate := demand.ExpectedRate(s.cfg.BaseDemand, s.cfg.Price, s.cfg.DemandElasticity, s.cfg.Equilibrate.AffectsDemand())
	k := demand.BlockArrivals(s.rng, rate)
	for i := 0; i < k; i++ {
		origin, destination, ok := s.grid.RandomTripEndpoints(s.rng, s.cfg.TripInhomogeneity, s.cfg.MinTripDistance, s.cfg.MaxTripDistance, constants.MaxRandomDrawAttempts)
		if !ok {
			err := domain.NewExhaustedDrawError("random trip endpoint draw exhausted its retry budget", nil).
				WithContext("block", s.block)
			s.logger.Warn("dropping trip request this block", slog.String("error", err.Error()))
			continue
		}
		t := trip.New(len(s.trips), origin, destination, s.block)
		s.trips = append(s.trips, t)
	}
}

// dispatchBlock implements step 4: base dispatch, then the forward-
// dispatch modifier. Assignments are computed against a single snapshot
// of idle vehicles and waiting trips, atomic at the block boundary.
func (s *Simulation) dispatchBlock() (attempts, successes int, err error) {
	var idle []dispatch.Candidate
	for _, v := range s.vehicles {
		if !v.Removed && v.Phase == domain.VehicleIdle {
			idle = append(idle, dispatch.Candidate{VehicleIndex: v.Index, Location: v.Location})
		}
	}

	var waiting []dispatch.Request
	for _, t := range s.trips {
		if t.Phase == domain.TripUnassigned {
			waiting = append(waiting, dispatch.Request{TripIndex: t.Index, Origin: t.Origin})
		}
	}
	attempts = len(waiting)
	metrics.DispatchAttempt(s.cfg.DispatchMethod.String())

	assignments, _ := s.dispatcher.Dispatch(s.rng, s.grid, idle, waiting)
	for _, a := range assignments {
		v := s.vehicles[a.VehicleIndex]
		t := s.trips[a.TripIndex]
		tripIndex := t.Index
		vehicleIndex := a.VehicleIndex
		v.CurrentTrip = &tripIndex
		t.AssignedVehicle = &vehicleIndex
		if !v.UpdatePhase(domain.VehicleDispatched) {
			return 0, 0, vehiclePhaseInvariantError(v, domain.VehicleDispatched, s.block)
		}
		if !t.UpdatePhase(domain.TripWaiting, s.block) {
			return 0, 0, tripPhaseInvariantError(t, domain.TripWaiting, s.block)
		}
		// A vehicle dispatched to a trip whose origin it already occupies
		// (distance zero at assignment) boards the same block rather than
		// waiting for next block's arrivals step to notice it hasn't moved.
		if pickupErr := s.tryPickup(v, t); pickupErr != nil {
			return 0, 0, pickupErr
		}
	}
	successes = len(assignments)
	for i := 0; i < successes; i++ {
		metrics.DispatchSuccess(s.cfg.DispatchMethod.String())
	}

	if s.dispatcher.ForwardDispatchEnabled {
		forwardSuccesses, fwdErr := s.forwardDispatchBlock()
		if fwdErr != nil {
			return 0, 0, fwdErr
		}
		successes += forwardSuccesses
	}

	return attempts, successes, nil
}

// forwardDispatchBlock matches occupied vehicles nearing dropoff against
// the remaining unmatched pool, so P3->P2 can replace P3->P1 at dropoff.
// A forward match is a real dispatch success by spec's own terms, so it
// is counted in history and metrics exactly like a base dispatch.
func (s *Simulation) forwardDispatchBlock() (successes int, err error) {
	var eligible []dispatch.Candidate
	for _, v := range s.vehicles {
		if v.Removed || v.Phase != domain.VehicleOccupied || v.CurrentTrip == nil || v.ForwardDispatchedNext != nil {
			continue
		}
		t := s.trips[*v.CurrentTrip]
		remaining := s.grid.Distance(v.Location, t.Destination)
		if remaining <= s.dispatcher.ForwardDispatchHorizon {
			eligible = append(eligible, dispatch.Candidate{VehicleIndex: v.Index, Location: v.Location})
		}
	}

	var waiting []dispatch.Request
	for _, t := range s.trips {
		if t.Phase == domain.TripUnassigned {
			waiting = append(waiting, dispatch.Request{TripIndex: t.Index, Origin: t.Origin})
		}
	}

	assignments, _ := s.dispatcher.AssignForward(s.grid, eligible, waiting)
	for _, a := range assignments {
		v := s.vehicles[a.VehicleIndex]
		t := s.trips[a.TripIndex]
		tripIndex := t.Index
		vehicleIndex := a.VehicleIndex
		v.ForwardDispatchedNext = &tripIndex
		t.AssignedVehicle = &vehicleIndex
		if !t.UpdatePhase(domain.TripWaiting, s.block) {
			return 0, tripPhaseInvariantError(t, domain.TripWaiting, s.block)
		}
		metrics.DispatchSuccess(s.cfg.DispatchMethod.String())
	}
	return len(assignments), nil
}

// sample implements step 5.
func (s *Simulation) sample(dispatchAttempts, dispatchSuccesses int) {
	var vp history.VehiclePhaseCounts
	activeVehicleCount := 0
	for _, v := range s.vehicles {
		if v.Removed {
			continue
		}
		activeVehicleCount++
		switch v.Phase {
		case domain.VehicleIdle:
			vp.P1++
		case domain.VehicleDispatched:
			vp.P2++
		case domain.VehicleOccupied:
			vp.P3++
		}
	}

	var tp history.TripPhaseCounts
	for _, t := range s.trips {
		switch t.Phase {
		case domain.TripUnassigned:
			tp.Unassigned++
		case domain.TripWaiting:
			tp.Waiting++
		case domain.TripRiding:
			tp.Riding++
		case domain.TripCompleted:
			tp.Completed++
		case domain.TripCancelled:
			tp.Cancelled++
		}
	}

	requestRate := demand.ExpectedRate(s.cfg.BaseDemand, s.cfg.Price, s.cfg.DemandElasticity, s.cfg.Equilibrate.AffectsDemand())
	s.history.Sample(vp, tp, history.DispatchCounts{Attempts: dispatchAttempts, Successes: dispatchSuccesses}, activeVehicleCount, requestRate, s.cfg.Price)

	metrics.VehiclesByPhase(domain.VehicleIdle.String(), float64(vp.P1))
	metrics.VehiclesByPhase(domain.VehicleDispatched.String(), float64(vp.P2))
	metrics.VehiclesByPhase(domain.VehicleOccupied.String(), float64(vp.P3))
	metrics.TripsUnassigned(float64(tp.Unassigned))
}

// equilibrateIfDue implements step 6.
func (s *Simulation) equilibrateIfDue() bool {
	if s.cfg.Equilibrate == equilibrium.Off {
		return false
	}
	if s.block == 0 || s.block%s.cfg.EquilibrationInterval != 0 {
		return false
	}

	clamped := false
	if s.cfg.Equilibrate.AffectsSupply() {
		clamped = s.equilibrateSupply() || clamped
	}
	if s.cfg.Equilibrate.AffectsDemand() {
		s.equilibrateDemand()
	}
	return clamped
}

func (s *Simulation) equilibrateSupply() bool {
	_, _, p3 := s.history.PhaseFractions()
	uDriver := equilibrium.DriverUtility(s.cfg.Price, p3, s.cfg.PlatformCommission, s.cfg.ReservedWage)

	activeCount := 0
	for _, v := range s.vehicles {
		if !v.Removed {
			activeCount++
		}
	}

	delta, clamped := equilibrium.SupplyStep(uDriver, activeCount, equilibrium.Bounds{MinVehicles: s.cfg.MinVehicles, MaxVehicles: s.cfg.MaxVehicles})
	metrics.Equilibration(s.cfg.Equilibrate.String(), float64(delta))
	switch {
	case delta > 0:
		for i := 0; i < delta; i++ {
			s.vehicles = append(s.vehicles, s.spawnVehicle())
		}
	case delta < 0:
		var idleIndices []int
		for _, v := range s.vehicles {
			if !v.Removed && v.Phase == domain.VehicleIdle {
				idleIndices = append(idleIndices, v.Index)
			}
		}
		sort.Ints(idleIndices)
		for _, idx := range equilibrium.SelectEvictions(idleIndices, -delta) {
			s.vehicles[idx].Remove()
		}
	}
	return clamped
}

func (s *Simulation) equilibrateDemand() {
	waitFraction := equilibrium.WaitFraction(s.history.WaitBlocks.TrailingMean(), s.history.RideBlocks.TrailingMean())
	uRider := equilibrium.RiderUtility(s.cfg.RiderUtilityBaseline, s.cfg.Price, waitFraction, s.cfg.WaitCost)
	oldPrice := s.cfg.Price
	s.cfg.Price = equilibrium.PriceStep(s.cfg.Price, uRider, s.cfg.PriceStepSize)
	metrics.Equilibration(s.cfg.Equilibrate.String(), s.cfg.Price-oldPrice)
}

// emit implements step 7.
func (s *Simulation) emit(clamped bool) Observation {
	obs := Observation{
		Block:                  s.block,
		TrailingMeanWaitBlocks: s.history.WaitBlocks.TrailingMean(),
		TrailingMeanRideBlocks: s.history.RideBlocks.TrailingMean(),
		DispatchSuccessRate:    s.history.DispatchSuccessRate(),
		Price:                  s.cfg.Price,
		RequestRate:            s.history.RequestRate.TrailingMean(),
		EquilibrationClamped:   clamped,
	}
	obs.P1Fraction, obs.P2Fraction, obs.P3Fraction = s.history.PhaseFractions()

	for _, v := range s.vehicles {
		if v.Removed {
			continue
		}
		obs.VehicleCount++
		obs.Vehicles = append(obs.Vehicles, VehicleObservation{
			Index:     v.Index,
			Location:  v.Location,
			Direction: v.Direction,
			Phase:     v.Phase,
			TripIndex: v.CurrentTrip,
		})
	}

	for _, t := range s.trips {
		if t.Phase == domain.TripCompleted && t.BlockCompleted != nil && *t.BlockCompleted == s.block {
			waitBlocks, _ := t.WaitBlocks()
			rideBlocks, _ := t.RideBlocks()
			obs.CompletedTrips = append(obs.CompletedTrips, CompletedTripObservation{
				Index:       t.Index,
				Origin:      t.Origin,
				Destination: t.Destination,
				WaitBlocks:  waitBlocks,
				RideBlocks:  rideBlocks,
				Fare:        t.Fare,
			})
		}
	}

	return obs
}

// ApplyControl applies one control message (spec section 6); control
// messages are only valid between blocks, so callers must not invoke this
// concurrently with Step.
func (s *Simulation) ApplyControl(msg ControlMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind {
	case ControlPause:
		s.paused = true
	case ControlResume:
		s.paused = false
	case ControlStop:
		s.stopped = true
	case ControlAdjustVehicleCount:
		s.adjustVehicleCount(msg.VehicleCountDelta)
	case ControlAdjustBaseDemand:
		s.cfg.BaseDemand += msg.BaseDemandDelta
		if s.cfg.BaseDemand < 0 {
			s.cfg.BaseDemand = 0
		}
	case ControlSwitchDispatchMethod:
		s.cfg.DispatchMethod = msg.DispatchMethod
		s.dispatcher.Method = msg.DispatchMethod
	case ControlReset:
		s.resetLocked()
	}
}

func (s *Simulation) adjustVehicleCount(delta int) {
	if delta > 0 {
		for i := 0; i < delta; i++ {
			s.vehicles = append(s.vehicles, s.spawnVehicle())
		}
		return
	}
	var idleIndices []int
	for _, v := range s.vehicles {
		if !v.Removed && v.Phase == domain.VehicleIdle {
			idleIndices = append(idleIndices, v.Index)
		}
	}
	sort.Ints(idleIndices)
	for _, idx := range equilibrium.SelectEvictions(idleIndices, -delta) {
		s.vehicles[idx].Remove()
	}
}

// resetLocked reinitializes the run at block 0 with the original vehicle
// count and an empty trip table, preserving configuration and RNG stream
// continuity (a reset does not re-seed).
func (s *Simulation) resetLocked() {
	s.vehicles = nil
	s.trips = nil
	s.block = 0
	s.paused = false
	s.stopped = false
	s.history = history.New(s.cfg.TrailingWindow, s.cfg.ResultsWindow)
	for i := 0; i < s.cfg.VehicleCount; i++ {
		s.vehicles = append(s.vehicles, s.spawnVehicle())
	}
}

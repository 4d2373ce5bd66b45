package history

// History aggregates every per-block series the simulation samples, plus
// the two per-completed-trip windows, at the trailing/results window
// lengths configured for a run.
type History struct {
	TrailingWindow int
	ResultsWindow  int

	P1Count *Series
	P2Count *Series
	P3Count *Series

	TripUnassignedCount *Series
	TripWaitingCount    *Series
	TripRidingCount     *Series
	TripCompletedCount  *Series
	TripCancelledCount  *Series

	DispatchAttempts  *Series
	DispatchSuccesses *Series

	VehicleCount *Series
	RequestRate  *Series
	Price        *Series

	WaitBlocks *TripMetricSeries
	RideBlocks *TripMetricSeries
}

// New constructs a History with every series sized to the given trailing
// and results window lengths, in blocks.
func New(trailingWindow, resultsWindow int) *History {
	return &History{
		TrailingWindow: trailingWindow,
		ResultsWindow:  resultsWindow,

		P1Count: NewSeries(trailingWindow, resultsWindow),
		P2Count: NewSeries(trailingWindow, resultsWindow),
		P3Count: NewSeries(trailingWindow, resultsWindow),

		TripUnassignedCount: NewSeries(trailingWindow, resultsWindow),
		TripWaitingCount:    NewSeries(trailingWindow, resultsWindow),
		TripRidingCount:     NewSeries(trailingWindow, resultsWindow),
		TripCompletedCount:  NewSeries(trailingWindow, resultsWindow),
		TripCancelledCount:  NewSeries(trailingWindow, resultsWindow),

		DispatchAttempts:  NewSeries(trailingWindow, resultsWindow),
		DispatchSuccesses: NewSeries(trailingWindow, resultsWindow),

		VehicleCount: NewSeries(trailingWindow, resultsWindow),
		RequestRate:  NewSeries(trailingWindow, resultsWindow),
		Price:        NewSeries(trailingWindow, resultsWindow),

		WaitBlocks: NewTripMetricSeries(trailingWindow, resultsWindow),
		RideBlocks: NewTripMetricSeries(trailingWindow, resultsWindow),
	}
}

// VehiclePhaseCounts is the per-block snapshot passed to Sample.
type VehiclePhaseCounts struct {
	P1, P2, P3 int
}

// TripPhaseCounts is the per-block snapshot passed to Sample.
type TripPhaseCounts struct {
	Unassigned, Waiting, Riding, Completed, Cancelled int
}

// DispatchCounts is the per-block dispatch outcome snapshot.
type DispatchCounts struct {
	Attempts, Successes int
}

// Sample records one block's worth of per-block series. It does not touch
// the per-completed-trip windows; OpenTripMetricBucket opens their bucket.
// Call exactly once per block, in the simulation's Sample step, after
// CompleteTrip has been called for every trip that completed that block.
func (h *History) Sample(vehicles VehiclePhaseCounts, trips TripPhaseCounts, dispatch DispatchCounts, vehicleCount int, requestRate, price float64) {
	h.P1Count.Add(float64(vehicles.P1))
	h.P2Count.Add(float64(vehicles.P2))
	h.P3Count.Add(float64(vehicles.P3))

	h.TripUnassignedCount.Add(float64(trips.Unassigned))
	h.TripWaitingCount.Add(float64(trips.Waiting))
	h.TripRidingCount.Add(float64(trips.Riding))
	h.TripCompletedCount.Add(float64(trips.Completed))
	h.TripCancelledCount.Add(float64(trips.Cancelled))

	h.DispatchAttempts.Add(float64(dispatch.Attempts))
	h.DispatchSuccesses.Add(float64(dispatch.Successes))

	h.VehicleCount.Add(float64(vehicleCount))
	h.RequestRate.Add(requestRate)
	h.Price.Add(price)
}

// OpenTripMetricBucket must be called once per block, before any
// CompleteTrip calls for that block, so per-completed-trip means stay
// indexed by the block each trip completed in.
func (h *History) OpenTripMetricBucket() {
	h.WaitBlocks.Advance()
	h.RideBlocks.Advance()
}

// CompleteTrip records one trip's wait and ride duration, in blocks, into
// the currently open bucket of both per-completed-trip windows.
func (h *History) CompleteTrip(waitBlocks, rideBlocks int) {
	h.WaitBlocks.Record(float64(waitBlocks))
	h.RideBlocks.Record(float64(rideBlocks))
}

// PhaseFractions returns the trailing P1/P2/P3 fractions of the vehicle
// fleet; by construction over a consistent sample these sum to 1.
func (h *History) PhaseFractions() (p1, p2, p3 float64) {
	total := h.P1Count.TrailingMean() + h.P2Count.TrailingMean() + h.P3Count.TrailingMean()
	if total == 0 {
		return 0, 0, 0
	}
	return h.P1Count.TrailingMean() / total, h.P2Count.TrailingMean() / total, h.P3Count.TrailingMean() / total
}

// DispatchSuccessRate returns the trailing fraction of dispatch attempts
// that produced an assignment, or 0 if no attempt has been sampled yet.
func (h *History) DispatchSuccessRate() float64 {
	attempts := h.DispatchAttempts.TrailingMean()
	if attempts == 0 {
		return 0
	}
	return h.DispatchSuccesses.TrailingMean() / attempts
}

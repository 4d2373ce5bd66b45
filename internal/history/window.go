// Package history implements the rolling/trailing and longer results
// windows of spec section 4.7: per-block ring buffers for phase counts,
// trip counts, dispatch attempts/successes, and per-completed-trip wait
// and ride times, each tolerant of start-up (fewer samples than window
// length reports the mean over what is available). Grounded in style on
// the teacher's circuit_breaker.go windowed counter bookkeeping, applied
// here to a continuously sampled signal instead of a failure count.
package history

// Window is a fixed-capacity circular buffer of one scalar sampled once
// per block (vehicle/trip phase counts, dispatch counts, price, ...).
type Window struct {
	values   []float64
	capacity int
	size     int
	next     int
	sum      float64
}

// NewWindow constructs a Window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{values: make([]float64, capacity), capacity: capacity}
}

// Add records one new sample, evicting the oldest once at capacity.
func (w *Window) Add(v float64) {
	if w.size < w.capacity {
		w.values[w.next] = v
		w.sum += v
		w.size++
	} else {
		w.sum += v - w.values[w.next]
		w.values[w.next] = v
	}
	w.next = (w.next + 1) % w.capacity
}

// Mean returns the mean of all samples currently held, or 0 if empty.
func (w *Window) Mean() float64 {
	if w.size == 0 {
		return 0
	}
	return w.sum / float64(w.size)
}

// Len returns the number of samples currently held (<= capacity).
func (w *Window) Len() int {
	return w.size
}

// Series pairs a short trailing window (live feedback, equilibration)
// with a longer results window (final reporting) over the same quantity.
type Series struct {
	Trailing *Window
	Results  *Window
}

// NewSeries constructs a Series with the given trailing/results capacities.
func NewSeries(trailingCapacity, resultsCapacity int) *Series {
	return &Series{
		Trailing: NewWindow(trailingCapacity),
		Results:  NewWindow(resultsCapacity),
	}
}

// Add records v into both the trailing and results windows.
func (s *Series) Add(v float64) {
	s.Trailing.Add(v)
	s.Results.Add(v)
}

// TrailingMean returns the short-window rolling mean.
func (s *Series) TrailingMean() float64 {
	return s.Trailing.Mean()
}

// ResultsMean returns the long-window rolling mean.
func (s *Series) ResultsMean() float64 {
	return s.Results.Mean()
}

// TripMetricWindow holds per-completed-trip samples (wait/ride blocks)
// grouped by the block at which each trip completed, so its mean is over
// trips that completed inside the window — not over blocks, most of
// which complete no trip at all.
type TripMetricWindow struct {
	buckets  [][]float64
	capacity int
}

// NewTripMetricWindow constructs a window spanning capacity blocks.
func NewTripMetricWindow(capacity int) *TripMetricWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &TripMetricWindow{capacity: capacity}
}

// Advance opens a new block's bucket, evicting the oldest once the
// window exceeds its block capacity. Call exactly once per block, before
// any Record calls for that block.
func (w *TripMetricWindow) Advance() {
	w.buckets = append(w.buckets, nil)
	if len(w.buckets) > w.capacity {
		w.buckets = w.buckets[len(w.buckets)-w.capacity:]
	}
}

// Record appends one completed trip's wait or ride block count to the
// current (most recently opened) block's bucket.
func (w *TripMetricWindow) Record(v float64) {
	if len(w.buckets) == 0 {
		w.Advance()
	}
	last := len(w.buckets) - 1
	w.buckets[last] = append(w.buckets[last], v)
}

// Mean returns the mean over every value recorded in any bucket
// currently held, or 0 if no trip has completed inside the window.
func (w *TripMetricWindow) Mean() float64 {
	sum := 0.0
	count := 0
	for _, bucket := range w.buckets {
		for _, v := range bucket {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// TripMetricSeries pairs a trailing and results TripMetricWindow.
type TripMetricSeries struct {
	Trailing *TripMetricWindow
	Results  *TripMetricWindow
}

// NewTripMetricSeries constructs a TripMetricSeries with the given
// trailing/results block-span capacities.
func NewTripMetricSeries(trailingCapacity, resultsCapacity int) *TripMetricSeries {
	return &TripMetricSeries{
		Trailing: NewTripMetricWindow(trailingCapacity),
		Results:  NewTripMetricWindow(resultsCapacity),
	}
}

// Advance opens a new block's bucket in both windows.
func (s *TripMetricSeries) Advance() {
	s.Trailing.Advance()
	s.Results.Advance()
}

// Record appends a completed trip's value to both windows' current bucket.
func (s *TripMetricSeries) Record(v float64) {
	s.Trailing.Record(v)
	s.Results.Record(v)
}

// TrailingMean returns the short-window mean over completed trips.
func (s *TripMetricSeries) TrailingMean() float64 {
	return s.Trailing.Mean()
}

// ResultsMean returns the long-window mean over completed trips.
func (s *TripMetricSeries) ResultsMean() float64 {
	return s.Results.Mean()
}

package history

import "testing"

import "github.com/stretchr/testify/assert"

func TestWindow_MeanOfEmptyIsZero(t *testing.T) {
	w := NewWindow(5)
	assert.Equal(t, 0.0, w.Mean())
	assert.Equal(t, 0, w.Len())
}

func TestWindow_MeanBeforeFullReflectsOnlySamplesSeen(t *testing.T) {
	w := NewWindow(5)
	w.Add(2)
	w.Add(4)
	assert.InDelta(t, 3.0, w.Mean(), 1e-9)
	assert.Equal(t, 2, w.Len())
}

func TestWindow_EvictsOldestPastCapacity(t *testing.T) {
	w := NewWindow(3)
	w.Add(1)
	w.Add(2)
	w.Add(3)
	assert.InDelta(t, 2.0, w.Mean(), 1e-9)
	w.Add(9) // evicts the 1
	assert.Equal(t, 3, w.Len())
	assert.InDelta(t, (2.0+3.0+9.0)/3.0, w.Mean(), 1e-9)
}

func TestSeries_TracksTrailingAndResultsIndependently(t *testing.T) {
	s := NewSeries(2, 4)
	s.Add(1)
	s.Add(2)
	s.Add(3)
	// trailing capacity 2: last two samples are 2,3
	assert.InDelta(t, 2.5, s.TrailingMean(), 1e-9)
	// results capacity 4, only 3 samples seen: 1,2,3
	assert.InDelta(t, 2.0, s.ResultsMean(), 1e-9)
}

func TestTripMetricWindow_MeanOnlyOverRecordedTrips(t *testing.T) {
	w := NewTripMetricWindow(3)
	w.Advance() // block 0: no completions
	w.Advance() // block 1: one completion of 4
	w.Record(4)
	w.Advance() // block 2: no completions
	// mean should be 4, not 4/3 (blocks with no completion don't count)
	assert.InDelta(t, 4.0, w.Mean(), 1e-9)
}

func TestTripMetricWindow_EvictsOldestBlockPastCapacity(t *testing.T) {
	w := NewTripMetricWindow(2)
	w.Advance()
	w.Record(10)
	w.Advance()
	w.Record(20)
	w.Advance() // evicts the first block's bucket (value 10)
	w.Record(30)
	assert.InDelta(t, 25.0, w.Mean(), 1e-9) // mean of 20 and 30
}

func TestTripMetricWindow_EmptyMeanIsZero(t *testing.T) {
	w := NewTripMetricWindow(5)
	assert.Equal(t, 0.0, w.Mean())
}

func TestTripMetricSeries_TracksBothWindows(t *testing.T) {
	s := NewTripMetricSeries(1, 3)
	s.Advance()
	s.Record(6)
	s.Advance()
	s.Record(2)
	// trailing capacity 1 block: only the latest block (value 2) remains
	assert.InDelta(t, 2.0, s.TrailingMean(), 1e-9)
	// results capacity 3 blocks: both completions still in scope
	assert.InDelta(t, 4.0, s.ResultsMean(), 1e-9)
}

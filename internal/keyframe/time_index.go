package keyframe

import (
	"math"
	"sort"
)

// TimeIndex answers nearest-timestamp queries over a trajectory.
//
// When the timestamps are non-decreasing (the expected case) queries binary
// search for the insertion point and compare the two neighbours. Otherwise
// the index falls back to a linear scan. Both paths return the same answer:
// the pose with the smallest |timestamp - t|, ties going to the earliest index.
type TimeIndex struct {
	stamps []float64
	sorted bool
}

// NewTimeIndex builds an index over the trajectory's timestamps.
func NewTimeIndex(traj Trajectory) *TimeIndex {
	stamps := traj.Timestamps()
	sorted := sort.Float64sAreSorted(stamps)
	if !sorted {
		Diagf("trajectory timestamps are not non-decreasing; using linear nearest-timestamp scan")
	}
	return &TimeIndex{stamps: stamps, sorted: sorted}
}

// Len returns the number of indexed poses.
func (ti *TimeIndex) Len() int { return len(ti.stamps) }

// NearestByTimestamp returns the index of the pose nearest in time to t and
// the absolute difference. It returns (-1, +Inf) for an empty index and
// (-1, NaN) when t is NaN.
func (ti *TimeIndex) NearestByTimestamp(t float64) (int, float64) {
	if len(ti.stamps) == 0 {
		return -1, math.Inf(1)
	}
	if math.IsNaN(t) {
		return -1, math.NaN()
	}
	if !ti.sorted {
		return ti.linearNearest(t)
	}

	// right is the first pose with timestamp >= t, which is also the earliest
	// of any run of equal timestamps.
	right := sort.SearchFloat64s(ti.stamps, t)
	if right == 0 {
		return 0, ti.stamps[0] - t
	}
	// Earliest pose carrying the largest timestamp < t.
	left := sort.SearchFloat64s(ti.stamps[:right], ti.stamps[right-1])
	leftDiff := t - ti.stamps[left]
	if right == len(ti.stamps) {
		return left, leftDiff
	}
	rightDiff := ti.stamps[right] - t
	if leftDiff <= rightDiff {
		return left, leftDiff
	}
	return right, rightDiff
}

func (ti *TimeIndex) linearNearest(t float64) (int, float64) {
	best, bestDiff := 0, math.Abs(ti.stamps[0]-t)
	for i := 1; i < len(ti.stamps); i++ {
		if d := math.Abs(ti.stamps[i] - t); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best, bestDiff
}

package keyframe

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func trajectoryOf(points ...r3.Vec) Trajectory {
	traj := make(Trajectory, len(points))
	for i, p := range points {
		traj[i] = Pose{Timestamp: float64(i), Position: p}
	}
	return traj
}

func TestCorrectLoopClosures_ReturnToStart(t *testing.T) {
	traj := trajectoryOf(
		r3.Vec{X: 0},
		r3.Vec{X: 1},
		r3.Vec{X: 2},
		r3.Vec{X: 0.05},
	)

	corrected, closures := CorrectLoopClosuresWithReport(traj, 0.1)
	require.Len(t, corrected, 4)
	assert.Equal(t, r3.Vec{}, corrected[3].Position)
	for i := 0; i < 3; i++ {
		assert.Equal(t, traj[i], corrected[i], "pose %d", i)
	}
	require.Len(t, closures, 1)
	assert.Equal(t, 3, closures[0].Index)
	assert.Equal(t, 0, closures[0].MatchIndex)
	assert.InDelta(t, 0.05, closures[0].Distance, 1e-12)
	assert.InDelta(t, -0.05, closures[0].Correction.X, 1e-12)

	// Timestamps are never altered.
	assert.Equal(t, traj.Timestamps(), corrected.Timestamps())

	tight := CorrectLoopClosures(traj, 0.01)
	assert.Equal(t, traj, tight)
}

func TestCorrectLoopClosures_ThresholdIsStrict(t *testing.T) {
	traj := trajectoryOf(r3.Vec{X: 0}, r3.Vec{X: 0.5})
	_, closures := CorrectLoopClosuresWithReport(traj, 0.5)
	assert.Empty(t, closures)

	_, closures = CorrectLoopClosuresWithReport(traj, 0.5000001)
	assert.Len(t, closures, 1)
}

func TestCorrectLoopClosures_DoesNotCompound(t *testing.T) {
	// B snaps to A; C is matched against B's original position, not its
	// corrected one.
	traj := trajectoryOf(
		r3.Vec{X: 0},
		r3.Vec{X: 0.05},
		r3.Vec{X: 0.12},
	)

	corrected, closures := CorrectLoopClosuresWithReport(traj, 0.1)
	require.Len(t, closures, 2)

	assert.InDelta(t, 0.0, corrected[1].Position.X, 1e-12)
	assert.Equal(t, 1, closures[1].MatchIndex)
	assert.InDelta(t, 0.05, corrected[2].Position.X, 1e-12)
}

func TestCorrectLoopClosures_TieGoesToEarliest(t *testing.T) {
	traj := trajectoryOf(
		r3.Vec{X: -0.04},
		r3.Vec{X: 0.04},
		r3.Vec{X: 5},
		r3.Vec{X: 0},
	)
	_, closures := CorrectLoopClosuresWithReport(traj, 0.1)

	var last LoopClosure
	for _, c := range closures {
		if c.Index == 3 {
			last = c
		}
	}
	assert.Equal(t, 3, last.Index)
	assert.Equal(t, 0, last.MatchIndex)
}

func TestCorrectLoopClosures_DoesNotAliasInput(t *testing.T) {
	traj := trajectoryOf(r3.Vec{}, r3.Vec{X: 0.01})
	original := traj.Clone()

	corrected := CorrectLoopClosures(traj, 0.1)
	assert.Equal(t, original, traj, "input must be left untouched")

	corrected[0].Position.X = 42
	assert.Equal(t, 0.0, traj[0].Position.X)
}

func TestCorrectLoopClosures_DegenerateInputs(t *testing.T) {
	assert.Empty(t, CorrectLoopClosures(nil, 0.1))

	single := trajectoryOf(r3.Vec{X: 1, Y: 2, Z: 3})
	assert.Equal(t, single, CorrectLoopClosures(single, 0.1))

	traj := trajectoryOf(r3.Vec{}, r3.Vec{})
	for _, thr := range []float64{0, -1, math.NaN()} {
		corrected, closures := CorrectLoopClosuresWithReport(traj, thr)
		assert.Equal(t, traj, corrected)
		assert.Empty(t, closures)
	}
}

func TestCorrectLoopClosures_Deterministic(t *testing.T) {
	traj := randomWalk(rand.New(rand.NewPCG(11, 13)), 300)
	a, ca := CorrectLoopClosuresWithReport(traj, 0.15)
	b, cb := CorrectLoopClosuresWithReport(traj, 0.15)
	assert.Equal(t, a, b)
	assert.Equal(t, ca, cb)
}

// randomWalk wanders inside a small box so that it revisits earlier ground.
func randomWalk(rng *rand.Rand, n int) Trajectory {
	traj := make(Trajectory, n)
	p := r3.Vec{}
	for i := range traj {
		traj[i] = Pose{Timestamp: float64(i) * 0.1, Position: p}
		step := r3.Vec{X: rng.NormFloat64() * 0.2, Y: rng.NormFloat64() * 0.2, Z: rng.NormFloat64() * 0.05}
		p = r3.Add(p, step)
		p.X = math.Max(-1, math.Min(1, p.X))
		p.Y = math.Max(-1, math.Min(1, p.Y))
		p.Z = math.Max(-0.5, math.Min(0.5, p.Z))
	}
	return traj
}

func TestGridIndexMatchesLinearIndex(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, thr := range []float64{0.05, 0.1, 0.3} {
		traj := randomWalk(rng, 1000)

		gridOut := traj.Clone()
		gridClosures := correctWithIndex(traj, gridOut, thr, NewGridIndex(thr))

		linearOut := traj.Clone()
		linearClosures := correctWithIndex(traj, linearOut, thr, NewLinearIndex())

		require.NotEmpty(t, linearClosures, "walk should revisit itself at %vm", thr)
		if diff := cmp.Diff(linearClosures, gridClosures); diff != "" {
			t.Fatalf("closures differ at threshold %v (-linear +grid):\n%s", thr, diff)
		}
		if diff := cmp.Diff(linearOut, gridOut); diff != "" {
			t.Fatalf("corrected trajectories differ at threshold %v (-linear +grid):\n%s", thr, diff)
		}
	}
}

func TestGridIndex_Queries(t *testing.T) {
	gi := NewGridIndex(1)

	idx, dist := gi.NearestAmongInsertedSoFar(r3.Vec{})
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(dist, 1))

	gi.Insert(0, r3.Vec{X: 0.5})
	gi.Insert(1, r3.Vec{X: -0.5})
	gi.Insert(2, r3.Vec{X: 10})
	assert.Equal(t, 3, gi.Len())

	idx, dist = gi.NearestAmongInsertedSoFar(r3.Vec{})
	assert.Equal(t, 0, idx, "equal distances resolve to the smaller index")
	assert.Equal(t, 0.5, dist)

	idx, dist = gi.NearestAmongInsertedSoFar(r3.Vec{X: 9.2})
	assert.Equal(t, 2, idx)
	assert.InDelta(t, 0.8, dist, 1e-12)

	// Nothing within the radius.
	idx, _ = gi.NearestAmongInsertedSoFar(r3.Vec{X: 5})
	assert.Equal(t, -1, idx)

	// Negative coordinates floor into their own cells.
	gi.Insert(3, r3.Vec{X: -3.95, Y: -0.01, Z: -2})
	idx, _ = gi.NearestAmongInsertedSoFar(r3.Vec{X: -4.05, Y: 0.01, Z: -2})
	assert.Equal(t, 3, idx)
}

func TestLinearIndex_Queries(t *testing.T) {
	li := NewLinearIndex()
	idx, dist := li.NearestAmongInsertedSoFar(r3.Vec{})
	assert.Equal(t, -1, idx)
	assert.True(t, math.IsInf(dist, 1))

	li.Insert(0, r3.Vec{Y: 3})
	li.Insert(1, r3.Vec{Y: -3})
	idx, dist = li.NearestAmongInsertedSoFar(r3.Vec{})
	assert.Equal(t, 0, idx)
	assert.Equal(t, 3.0, dist)
}

func TestCorrectLoopClosures_IdempotentWhenNothingIsClose(t *testing.T) {
	traj := trajectoryOf(
		r3.Vec{X: 0},
		r3.Vec{X: 1},
		r3.Vec{X: 2},
		r3.Vec{X: 0.05},
		r3.Vec{X: 3},
	)
	// A snapped pose coincides with its match, so a second pass re-snaps it
	// by a zero correction.
	once := CorrectLoopClosures(traj, 0.5)
	assert.Equal(t, r3.Vec{}, once[3].Position)

	twice, closures := CorrectLoopClosuresWithReport(CorrectLoopClosures(traj, 0.5), 0.5)
	require.Len(t, closures, 1)
	assert.Equal(t, 0.0, closures[0].Distance)
	assert.Equal(t, once, twice)

	spread := trajectoryOf(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{X: 1, Y: 1})
	assert.Equal(t, spread, CorrectLoopClosures(spread, 0.5))
	assert.Equal(t, spread, CorrectLoopClosures(CorrectLoopClosures(spread, 0.5), 0.5))
}

func TestCorrectLoopClosures_FarPoseKeepsOriginal(t *testing.T) {
	traj := trajectoryOf(
		r3.Vec{X: 0},
		r3.Vec{X: 0.05},
		r3.Vec{X: 4, Y: 4},
	)
	corrected, closures := CorrectLoopClosuresWithReport(traj, 0.1)
	require.Len(t, closures, 1)
	assert.Equal(t, traj[2], corrected[2])
}

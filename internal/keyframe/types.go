package keyframe

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a timestamped keyframe position from the tracking pipeline.
type Pose struct {
	Timestamp float64 // seconds
	Position  r3.Vec  // metres
}

// Trajectory is an ordered sequence of poses in file order. Timestamps are
// assumed non-decreasing; nothing in this package re-sorts a trajectory.
type Trajectory []Pose

// CorrectedTrajectory has the same length and timestamps as the trajectory it
// was derived from. Only positions may differ. It never shares backing
// storage with its source.
type CorrectedTrajectory = Trajectory

// Clone returns a copy that does not alias t.
func (t Trajectory) Clone() Trajectory {
	out := make(Trajectory, len(t))
	copy(out, t)
	return out
}

// Timestamps returns the pose timestamps in order.
func (t Trajectory) Timestamps() []float64 {
	ts := make([]float64, len(t))
	for i, p := range t {
		ts[i] = p.Timestamp
	}
	return ts
}

// Positions returns the pose positions in order.
func (t Trajectory) Positions() []r3.Vec {
	ps := make([]r3.Vec, len(t))
	for i, p := range t {
		ps[i] = p.Position
	}
	return ps
}

// DetectionEvent is one labelled detection from the object detector log.
type DetectionEvent struct {
	Timestamp  float64 // seconds, same clock as the trajectory
	Label      string
	Confidence float64 // [0, 1]
}

// Association pairs a detection with the temporally nearest pose.
// PoseIndex is the index of Pose in the trajectory and TimeDiff the absolute
// timestamp difference that qualified the match.
type Association struct {
	Pose      Pose
	PoseIndex int
	Event     DetectionEvent
	TimeDiff  float64
}

// LoopClosure records one snap applied by the loop-closure corrector.
type LoopClosure struct {
	Index      int     // corrected pose
	MatchIndex int     // earlier pose it was snapped to
	Distance   float64 // original distance between the two, metres
	Correction r3.Vec  // original[MatchIndex] - original[Index]
}

package keyframe

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// CorrectLoopClosures returns a corrected copy of traj in which every pose
// that comes within loopThreshold metres of an earlier pose is snapped onto
// that earlier pose. See CorrectLoopClosuresWithReport.
func CorrectLoopClosures(traj Trajectory, loopThreshold float64) CorrectedTrajectory {
	corrected, _ := CorrectLoopClosuresWithReport(traj, loopThreshold)
	return corrected
}

// CorrectLoopClosuresWithReport walks poses 1..N-1 in order. For pose i it
// finds the nearest original position among poses 0..i-1 (ties to the
// earliest). If that distance is strictly below loopThreshold the corrected
// position becomes original[i] + (original[j] - original[i]); otherwise the
// pose is copied unchanged. Pose 0 is the anchor and is never corrected.
//
// Corrections are local snaps computed from the original trajectory only.
// They do not compound and are not propagated to later poses.
//
// The result never aliases traj. A non-positive or NaN threshold can match
// nothing, so the copy is returned as is.
func CorrectLoopClosuresWithReport(traj Trajectory, loopThreshold float64) (CorrectedTrajectory, []LoopClosure) {
	corrected := traj.Clone()
	if len(traj) < 2 || !(loopThreshold > 0) {
		return corrected, nil
	}

	closures := correctWithIndex(traj, corrected, loopThreshold, NewGridIndex(loopThreshold))
	Diagf("loop closure: %d of %d poses snapped (threshold %.3fm)", len(closures), len(traj), loopThreshold)
	return corrected, closures
}

// correctWithIndex runs the forward pass using index for the nearest
// neighbour queries. Only original positions are ever inserted.
func correctWithIndex(traj, corrected Trajectory, loopThreshold float64, index PositionIndex) []LoopClosure {
	var closures []LoopClosure

	index.Insert(0, traj[0].Position)
	for i := 1; i < len(traj); i++ {
		current := traj[i].Position
		j, dist := index.NearestAmongInsertedSoFar(current)
		if j >= 0 && dist < loopThreshold {
			correction := r3.Sub(traj[j].Position, current)
			corrected[i].Position = r3.Add(current, correction)
			closures = append(closures, LoopClosure{
				Index:      i,
				MatchIndex: j,
				Distance:   dist,
				Correction: correction,
			})
			Tracef("loop closure: pose %d -> pose %d (%.4fm)", i, j, dist)
		}
		index.Insert(i, current)
	}
	return closures
}

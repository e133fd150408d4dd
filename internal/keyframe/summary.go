package keyframe

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// RunSummary is the headline statistics of one analysis run.
type RunSummary struct {
	Poses                     int     `json:"poses"`
	DurationSecs              float64 `json:"duration_secs"`
	PathLengthMeters          float64 `json:"path_length_m"`
	CorrectedPathLengthMeters float64 `json:"corrected_path_length_m"`
	StartX                    float64 `json:"start_x_m"`
	StartY                    float64 `json:"start_y_m"`
	StartZ                    float64 `json:"start_z_m"`
	EndX                      float64 `json:"end_x_m"`
	EndY                      float64 `json:"end_y_m"`
	EndZ                      float64 `json:"end_z_m"`

	LoopClosures         int     `json:"loop_closures"`
	MeanCorrectionMeters float64 `json:"mean_correction_m"`
	MaxCorrectionMeters  float64 `json:"max_correction_m"`

	Detections               int     `json:"detections"`
	SkippedDetections        int     `json:"skipped_detections"`
	FilteredDetections       int     `json:"filtered_detections"`
	Associations             int     `json:"associations"`
	AssociatedPoses          int     `json:"associated_poses"`
	MeanAssociatedConfidence float64 `json:"mean_associated_confidence"`
}

// Summarize computes a RunSummary. detections may be nil. Means over empty
// sets are reported as zero.
func Summarize(traj Trajectory, corrected CorrectedTrajectory, closures []LoopClosure, detections *DetectionSet, assocs []Association) RunSummary {
	s := RunSummary{
		Poses:                     len(traj),
		PathLengthMeters:          PathLength(traj),
		CorrectedPathLengthMeters: PathLength(corrected),
		LoopClosures:              len(closures),
		Associations:              len(assocs),
	}

	if n := len(traj); n > 0 {
		s.DurationSecs = traj[n-1].Timestamp - traj[0].Timestamp
		s.StartX, s.StartY, s.StartZ = traj[0].Position.X, traj[0].Position.Y, traj[0].Position.Z
		s.EndX, s.EndY, s.EndZ = traj[n-1].Position.X, traj[n-1].Position.Y, traj[n-1].Position.Z
	}

	if len(closures) > 0 {
		mags := make([]float64, len(closures))
		for i, c := range closures {
			mags[i] = r3.Norm(c.Correction)
		}
		s.MeanCorrectionMeters = stat.Mean(mags, nil)
		s.MaxCorrectionMeters = floats.Max(mags)
	}

	if detections != nil {
		s.Detections = len(detections.Events)
		s.SkippedDetections = len(detections.Skipped)
		s.FilteredDetections = detections.Filtered
	}

	if len(assocs) > 0 {
		confs := make([]float64, len(assocs))
		for i, a := range assocs {
			confs[i] = a.Event.Confidence
		}
		s.MeanAssociatedConfidence = stat.Mean(confs, nil)
		s.AssociatedPoses = len(GroupByPose(assocs))
	}

	return s
}

// PathLength returns the summed Euclidean length of consecutive segments.
func PathLength(traj Trajectory) float64 {
	if len(traj) < 2 {
		return 0
	}
	segs := make([]float64, len(traj)-1)
	for i := 1; i < len(traj); i++ {
		segs[i-1] = r3.Norm(r3.Sub(traj[i].Position, traj[i-1].Position))
	}
	return floats.Sum(segs)
}

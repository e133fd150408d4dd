package keyframe

import (
	"context"
	"fmt"

	"github.com/banshee-data/keyframe.report/internal/config"
	"github.com/banshee-data/keyframe.report/internal/fsutil"
)

// Params are the explicit thresholds and filters of one run.
type Params struct {
	TimeThresholdSecs   float64
	LoopThresholdMeters float64
	KeepLabels          []string
}

// DefaultParams returns the built-in defaults (0.1s, 0.1m, person).
func DefaultParams() Params {
	return ParamsFromConfig(config.EmptyAnalysisConfig())
}

// ParamsFromConfig builds Params from a loaded AnalysisConfig.
func ParamsFromConfig(cfg *config.AnalysisConfig) Params {
	return Params{
		TimeThresholdSecs:   cfg.GetTimeThresholdSecs(),
		LoopThresholdMeters: cfg.GetLoopThresholdMeters(),
		KeepLabels:          cfg.GetKeepLabels(),
	}
}

// Inputs names the two files of a run. FS defaults to the OS filesystem.
type Inputs struct {
	TrajectoryPath string
	DetectionsPath string
	FS             fsutil.FileSystem
}

// Result holds everything derived from one run. Nothing here is reused by a
// later run.
type Result struct {
	Params       Params
	Inputs       Inputs
	Trajectory   Trajectory
	Detections   *DetectionSet
	Associations []Association
	Corrected    CorrectedTrajectory
	LoopClosures []LoopClosure
	Summary      RunSummary
}

// Analyse loads both inputs, associates detections to poses, corrects loop
// closures and summarises the run. A trajectory parse error or a missing
// input aborts the run; detection problems never do. ctx is checked between
// stages.
func Analyse(ctx context.Context, p Params, in Inputs) (*Result, error) {
	fsys := in.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	// Both inputs must exist before any parsing starts.
	for _, path := range []string{in.TrajectoryPath, in.DetectionsPath} {
		if !fsutil.Exists(fsys, path) {
			err := fmt.Errorf("%w: %s", ErrMissingFile, path)
			Opsf("analysis aborted: %v", err)
			return nil, err
		}
	}

	traj, err := LoadTrajectoryFS(fsys, in.TrajectoryPath)
	if err != nil {
		return nil, fmt.Errorf("load trajectory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dets, err := LoadDetectionsFS(fsys, in.DetectionsPath, p.KeepLabels)
	if err != nil {
		return nil, fmt.Errorf("load detections: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assocs := Associate(traj, dets.Events, p.TimeThresholdSecs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	corrected, closures := CorrectLoopClosuresWithReport(traj, p.LoopThresholdMeters)

	res := &Result{
		Params:       p,
		Inputs:       in,
		Trajectory:   traj,
		Detections:   dets,
		Associations: assocs,
		Corrected:    corrected,
		LoopClosures: closures,
	}
	res.Summary = Summarize(traj, corrected, closures, dets, assocs)

	Opsf("analysis complete: %d poses, %d detections, %d associations, %d loop closures",
		len(traj), len(dets.Events), len(assocs), len(closures))
	return res, nil
}

// Package render draws analysis results. PNG figures use gonum/plot and the
// interactive page uses go-echarts. The core keyframe package never imports
// this package.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/keyframe.report/internal/config"
	"github.com/banshee-data/keyframe.report/internal/keyframe"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoPoses is returned when asked to draw an empty trajectory.
var ErrNoPoses = errors.New("render: trajectory has no poses")

// Projection selects which two axes of a 3D position are drawn.
type Projection int

const (
	PlaneXY Projection = iota
	PlaneXZ
	PlaneYZ
)

// ParseProjection maps "xy", "xz" or "yz" to a Projection.
func ParseProjection(s string) (Projection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xy":
		return PlaneXY, nil
	case "xz":
		return PlaneXZ, nil
	case "yz":
		return PlaneYZ, nil
	}
	return PlaneXY, fmt.Errorf("unknown projection %q (want xy, xz or yz)", s)
}

func (p Projection) String() string {
	switch p {
	case PlaneXZ:
		return "xz"
	case PlaneYZ:
		return "yz"
	}
	return "xy"
}

// Project returns the two drawn coordinates of v.
func (p Projection) Project(v r3.Vec) (float64, float64) {
	switch p {
	case PlaneXZ:
		return v.X, v.Z
	case PlaneYZ:
		return v.Y, v.Z
	}
	return v.X, v.Y
}

// AxisLabels returns the horizontal and vertical axis titles.
func (p Projection) AxisLabels() (string, string) {
	switch p {
	case PlaneXZ:
		return "X (m)", "Z (m)"
	case PlaneYZ:
		return "Y (m)", "Z (m)"
	}
	return "X (m)", "Y (m)"
}

// Options controls figure size and projection.
type Options struct {
	WidthInches  float64
	HeightInches float64
	Plane        Projection
}

// DefaultOptions returns the built-in figure size on the XY plane.
func DefaultOptions() Options {
	return Options{
		WidthInches:  config.DefaultPlotWidthInches,
		HeightInches: config.DefaultPlotHeightInches,
		Plane:        PlaneXY,
	}
}

// OptionsFromConfig takes the figure size from cfg.
func OptionsFromConfig(cfg *config.AnalysisConfig, plane Projection) Options {
	return Options{
		WidthInches:  cfg.GetPlotWidthInches(),
		HeightInches: cfg.GetPlotHeightInches(),
		Plane:        plane,
	}
}

// Data is everything a renderer may draw for one run.
type Data struct {
	Title        string
	Trajectory   keyframe.Trajectory
	Corrected    keyframe.CorrectedTrajectory
	Associations []keyframe.Association
	LoopClosures []keyframe.LoopClosure
}

// DataFromResult collects the drawable parts of an analysis result.
func DataFromResult(title string, res *keyframe.Result) Data {
	return Data{
		Title:        title,
		Trajectory:   res.Trajectory,
		Corrected:    res.Corrected,
		Associations: res.Associations,
		LoopClosures: res.LoopClosures,
	}
}

// detectionLabels returns the distinct associated labels in first-seen order.
func detectionLabels(assocs []keyframe.Association) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, a := range assocs {
		if !seen[a.Event.Label] {
			seen[a.Event.Label] = true
			labels = append(labels, a.Event.Label)
		}
	}
	return labels
}

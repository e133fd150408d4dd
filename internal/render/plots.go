package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/banshee-data/keyframe.report/internal/keyframe"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	trajectoryColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	keyframeColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	startColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	endColor        = color.RGBA{R: 148, G: 103, B: 189, A: 255}
	detectionColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	correctedColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

func projectTrajectory(traj keyframe.Trajectory, plane Projection) plotter.XYs {
	pts := make(plotter.XYs, len(traj))
	for i, p := range traj {
		pts[i].X, pts[i].Y = plane.Project(p.Position)
	}
	return pts
}

func newPlot(title string, plane Projection) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text, p.Y.Label.Text = plane.AxisLabels()
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

func markers(pts plotter.XYs, c color.Color, shape draw.GlyphDrawer, radius vg.Length) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle = draw.GlyphStyle{Color: c, Radius: radius, Shape: shape}
	return s, nil
}

// TrajectoryPlot draws the keyframe trajectory with its start and end
// points and a marker on every pose that received a detection.
func TrajectoryPlot(d Data, o Options) (*plot.Plot, error) {
	if len(d.Trajectory) == 0 {
		return nil, ErrNoPoses
	}
	title := d.Title
	if title == "" {
		title = "Keyframe Trajectory"
	}
	p := newPlot(title, o.Plane)

	pts := projectTrajectory(d.Trajectory, o.Plane)
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("trajectory line: %w", err)
	}
	line.Color = trajectoryColor
	line.Width = vg.Points(1)
	points.GlyphStyle = draw.GlyphStyle{Color: keyframeColor, Radius: vg.Points(1.5), Shape: draw.CircleGlyph{}}
	p.Add(line, points)
	p.Legend.Add("Keyframe Trajectory", line)
	p.Legend.Add("Keyframes", points)

	start, err := markers(pts[:1], startColor, draw.CircleGlyph{}, vg.Points(5))
	if err != nil {
		return nil, err
	}
	end, err := markers(pts[len(pts)-1:], endColor, draw.CircleGlyph{}, vg.Points(5))
	if err != nil {
		return nil, err
	}
	p.Add(start, end)
	p.Legend.Add("Start Point", start)
	p.Legend.Add("End Point", end)

	for _, label := range detectionLabels(d.Associations) {
		var det plotter.XYs
		for _, a := range d.Associations {
			if a.Event.Label != label {
				continue
			}
			x, y := o.Plane.Project(a.Pose.Position)
			det = append(det, plotter.XY{X: x, Y: y})
		}
		s, err := markers(det, detectionColor, draw.TriangleGlyph{}, vg.Points(4))
		if err != nil {
			return nil, err
		}
		p.Add(s)
		p.Legend.Add(label+" detected", s)
	}

	equalAxes(p, pts)
	return p, nil
}

// LoopClosurePlot overlays the corrected trajectory on the original one and
// marks each snapped pose.
func LoopClosurePlot(d Data, o Options) (*plot.Plot, error) {
	if len(d.Trajectory) == 0 {
		return nil, ErrNoPoses
	}
	title := d.Title
	if title == "" {
		title = "Trajectory with Loop Closure Correction"
	}
	p := newPlot(title, o.Plane)

	orig := projectTrajectory(d.Trajectory, o.Plane)
	origLine, err := plotter.NewLine(orig)
	if err != nil {
		return nil, fmt.Errorf("original line: %w", err)
	}
	origLine.Color = trajectoryColor
	origLine.Width = vg.Points(1)
	origLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(origLine)
	p.Legend.Add("Original Trajectory", origLine)

	all := orig
	if len(d.Corrected) > 0 {
		corr := projectTrajectory(d.Corrected, o.Plane)
		corrLine, err := plotter.NewLine(corr)
		if err != nil {
			return nil, fmt.Errorf("corrected line: %w", err)
		}
		corrLine.Color = correctedColor
		corrLine.Width = vg.Points(1)
		p.Add(corrLine)
		p.Legend.Add("Corrected Trajectory", corrLine)
		all = append(append(plotter.XYs{}, orig...), corr...)
	}

	if len(d.LoopClosures) > 0 {
		snapped := make(plotter.XYs, 0, len(d.LoopClosures))
		for _, c := range d.LoopClosures {
			if c.Index < 0 || c.Index >= len(d.Trajectory) {
				continue
			}
			x, y := o.Plane.Project(d.Trajectory[c.Index].Position)
			snapped = append(snapped, plotter.XY{X: x, Y: y})
		}
		s, err := markers(snapped, keyframeColor, draw.CrossGlyph{}, vg.Points(3))
		if err != nil {
			return nil, err
		}
		p.Add(s)
		p.Legend.Add("Loop Closures", s)
	}

	equalAxes(p, all)
	return p, nil
}

// equalAxes gives both axes the same span around the data so distances are
// not distorted.
func equalAxes(p *plot.Plot, pts plotter.XYs) {
	xmin, xmax, ymin, ymax := plotter.XYRange(pts)
	span := math.Max(xmax-xmin, ymax-ymin)
	if span == 0 {
		span = 1
	}
	half := span/2 + span*0.05
	cx, cy := (xmin+xmax)/2, (ymin+ymax)/2
	p.X.Min, p.X.Max = cx-half, cx+half
	p.Y.Min, p.Y.Max = cy-half, cy+half
}

// WritePNG encodes p as a PNG of the configured size.
func WritePNG(w io.Writer, p *plot.Plot, o Options) error {
	wt, err := p.WriterTo(vg.Length(o.WidthInches)*vg.Inch, vg.Length(o.HeightInches)*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

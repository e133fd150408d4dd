package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DefaultAssetsHost serves the echarts javascript for rendered pages.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

func scatterSeries(d Data, o Options) (map[string][]opts.ScatterData, []string) {
	series := make(map[string][]opts.ScatterData)
	var order []string
	add := func(name string, pt opts.ScatterData) {
		if _, ok := series[name]; !ok {
			order = append(order, name)
		}
		series[name] = append(series[name], pt)
	}

	for i, p := range d.Trajectory {
		x, y := o.Plane.Project(p.Position)
		add("original", opts.ScatterData{Name: fmt.Sprintf("pose %d @%.3fs", i, p.Timestamp), Value: []interface{}{x, y}})
	}
	for _, c := range d.LoopClosures {
		if c.Index < 0 || c.Index >= len(d.Corrected) {
			continue
		}
		x, y := o.Plane.Project(d.Corrected[c.Index].Position)
		add("corrected", opts.ScatterData{
			Name:  fmt.Sprintf("pose %d -> %d (%.3fm)", c.Index, c.MatchIndex, c.Distance),
			Value: []interface{}{x, y},
		})
	}
	if n := len(d.Trajectory); n > 0 {
		x, y := o.Plane.Project(d.Trajectory[0].Position)
		add("start", opts.ScatterData{Name: "start", Value: []interface{}{x, y}, SymbolSize: 14})
		x, y = o.Plane.Project(d.Trajectory[n-1].Position)
		add("end", opts.ScatterData{Name: "end", Value: []interface{}{x, y}, SymbolSize: 14})
	}
	for _, a := range d.Associations {
		x, y := o.Plane.Project(a.Pose.Position)
		add(a.Event.Label, opts.ScatterData{
			Name:       fmt.Sprintf("%s %.2f @%.3fs", a.Event.Label, a.Event.Confidence, a.Event.Timestamp),
			Value:      []interface{}{x, y},
			Symbol:     "triangle",
			SymbolSize: 10,
		})
	}
	return series, order
}

// TrajectoryChart builds an interactive scatter of the trajectory, the
// snapped poses and the associated detections.
func TrajectoryChart(d Data, o Options, assetsHost string) (*charts.Scatter, error) {
	if len(d.Trajectory) == 0 {
		return nil, ErrNoPoses
	}
	if assetsHost == "" {
		assetsHost = DefaultAssetsHost
	}
	title := d.Title
	if title == "" {
		title = "Keyframe Trajectory"
	}
	xName, yName := o.Plane.AxisLabels()

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("poses=%d detections=%d closures=%d plane=%s", len(d.Trajectory), len(d.Associations), len(d.LoopClosures), o.Plane),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xName, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: yName, NameLocation: "middle", NameGap: 30}),
	)

	series, order := scatterSeries(d, o)
	for _, name := range order {
		scatter.AddSeries(name, series[name], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	}
	return scatter, nil
}

// WriteTrajectoryHTML renders TrajectoryChart to w.
func WriteTrajectoryHTML(w io.Writer, d Data, o Options, assetsHost string) error {
	page, err := RenderTrajectoryHTML(d, o, assetsHost)
	if err != nil {
		return err
	}
	_, err = w.Write(page)
	return err
}

// RenderTrajectoryHTML returns the chart page as bytes.
func RenderTrajectoryHTML(d Data, o Options, assetsHost string) ([]byte, error) {
	scatter, err := TrajectoryChart(d, o, assetsHost)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/keyframe.report/internal/config"
	"github.com/banshee-data/keyframe.report/internal/db"
	"github.com/banshee-data/keyframe.report/internal/export"
	"github.com/banshee-data/keyframe.report/internal/keyframe"
	"github.com/banshee-data/keyframe.report/internal/render"
	"github.com/banshee-data/keyframe.report/internal/security"
	"github.com/banshee-data/keyframe.report/internal/timeutil"
	"github.com/google/uuid"
	"gonum.org/v1/plot"
)

// Output images written next to the exported tables.
const (
	trajectoryPNG  = "trajectory.png"
	loopClosurePNG = "loop_closure.png"
	trajectoryHTML = "trajectory.html"
)

// analyseOptions holds the parsed analyse command line.
type analyseOptions struct {
	TrajectoryPath string
	DetectionsPath string
	OutputDir      string
	Plane          render.Projection
	Verbose        bool
	Trace          bool
	Config         *config.AnalysisConfig
}

func parseAnalyseFlags(args []string, stderr io.Writer) (*analyseOptions, error) {
	fs := newFlagSet("analyse", stderr)

	var (
		opts          analyseOptions
		configPath    string
		labels        string
		timeThreshold float64
		loopThreshold float64
		dbPath        string
		plots         bool
		html          bool
		csv           bool
		jsonOut       bool
		plane         string
	)
	fs.StringVar(&opts.TrajectoryPath, "trajectory", "", "Keyframe trajectory in TUM format (required)")
	fs.StringVar(&opts.DetectionsPath, "detections", "", "Detection log: timestamp, label, confidence (required)")
	fs.StringVar(&opts.OutputDir, "output", "output", "Output directory for results")
	fs.StringVar(&configPath, "config", "", "Analysis config JSON (defaults built in)")
	fs.StringVar(&labels, "labels", "", "Comma-separated labels to keep (default from config: person)")
	fs.Float64Var(&timeThreshold, "time-threshold", config.DefaultTimeThresholdSecs, "Max seconds between a detection and its pose")
	fs.Float64Var(&loopThreshold, "loop-threshold", config.DefaultLoopThresholdMeters, "Loop-closure snap distance in metres")
	fs.StringVar(&dbPath, "db", "", "SQLite results database (optional, for persistence)")
	fs.BoolVar(&plots, "plots", true, "Write PNG plots")
	fs.BoolVar(&html, "html", false, "Write an interactive HTML chart")
	fs.BoolVar(&csv, "csv", true, "Export associations and loop closures to CSV")
	fs.BoolVar(&jsonOut, "json", true, "Export the run report to JSON")
	fs.StringVar(&plane, "plane", "xy", "Projection plane for plots: xy, xz or yz")
	fs.BoolVar(&opts.Verbose, "v", false, "Verbose output (diagnostics)")
	fs.BoolVar(&opts.Trace, "vv", false, "Very verbose output (one line per association and closure)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: keyframes analyse -trajectory FILE -detections FILE [options]\n\n")
		fmt.Fprintf(stderr, "Associates detections with the nearest keyframe pose in time and snaps\n")
		fmt.Fprintf(stderr, "poses that revisit earlier positions.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.TrajectoryPath == "" || opts.DetectionsPath == "" {
		fs.Usage()
		return nil, errors.New("-trajectory and -detections are required")
	}

	cfg := config.EmptyAnalysisConfig()
	if configPath != "" {
		loaded, err := config.LoadAnalysisConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags given explicitly win over the config file.
	set := setFlags(fs)
	if set["time-threshold"] {
		cfg.SetTimeThresholdSecs(timeThreshold)
	}
	if set["loop-threshold"] {
		cfg.SetLoopThresholdMeters(loopThreshold)
	}
	if set["labels"] {
		cfg.KeepLabels = splitLabels(labels)
		if len(cfg.KeepLabels) == 0 {
			return nil, errors.New("-labels must name at least one label")
		}
	}
	if set["db"] {
		cfg.SetDBPath(dbPath)
	}
	if set["plots"] {
		cfg.Plots = &plots
	}
	if set["html"] {
		cfg.HTML = &html
	}
	if set["csv"] {
		cfg.ExportCSV = &csv
	}
	if set["json"] {
		cfg.ExportJSON = &jsonOut
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts.Config = cfg

	p, err := render.ParseProjection(plane)
	if err != nil {
		return nil, err
	}
	opts.Plane = p
	return &opts, nil
}

func runAnalyse(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseAnalyseFlags(args, stderr)
	if err != nil {
		return err
	}
	setupLogging(stderr, opts.Verbose, opts.Trace)
	return analyse(ctx, opts, timeutil.RealClock{}, stdout)
}

func setupLogging(stderr io.Writer, verbose, trace bool) {
	w := keyframe.LogWriters{Ops: stderr}
	if verbose || trace {
		w.Diag = stderr
	}
	if trace {
		w.Trace = stderr
	}
	keyframe.SetLogWriters(w)
}

func analyse(ctx context.Context, opts *analyseOptions, clock timeutil.Clock, stdout io.Writer) error {
	cfg := opts.Config
	start := clock.Now()

	res, err := keyframe.Analyse(ctx, keyframe.ParamsFromConfig(cfg), keyframe.Inputs{
		TrajectoryPath: opts.TrajectoryPath,
		DetectionsPath: opts.DetectionsPath,
	})
	if err != nil {
		return err
	}

	runID, createdAt := uuid.NewString(), clock.Now()
	if path := cfg.GetDBPath(); path != "" {
		run, err := storeRun(ctx, path, clock, res)
		if err != nil {
			return err
		}
		runID, createdAt = run.ID, run.CreatedAt
	}

	if err := prepareOutputDir(opts.OutputDir); err != nil {
		return err
	}
	exporter := export.NewExporter(nil, opts.OutputDir)
	written, err := exporter.Export(res, export.NewReport(runID, createdAt, res), export.Options{
		CSV:  cfg.GetExportCSV(),
		JSON: cfg.GetExportJSON(),
	})
	if err != nil {
		return err
	}

	data := render.DataFromResult("", res)
	ropts := render.OptionsFromConfig(cfg, opts.Plane)
	if cfg.GetPlots() {
		images, err := writePlots(exporter, data, ropts)
		if err != nil {
			return err
		}
		written = append(written, images...)
	}
	if cfg.GetHTML() {
		path, err := writeHTML(exporter, data, ropts)
		if err != nil {
			return err
		}
		written = append(written, path)
	}

	printSummary(stdout, runID, res, written)
	keyframe.Diagf("run %s finished in %v", runID, clock.Since(start))
	return nil
}

func storeRun(ctx context.Context, path string, clock timeutil.Clock, res *keyframe.Result) (*db.Run, error) {
	database, err := db.NewDB(path)
	if err != nil {
		return nil, fmt.Errorf("open results database: %w", err)
	}
	defer database.Close()
	run, err := db.NewRunStore(database, clock).Save(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}
	return run, nil
}

// prepareOutputDir creates dir and refuses to write through any output file
// name that resolves outside it.
func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, name := range []string{
		export.CorrectedTrajectoryFile, export.AssociationsFile, export.LoopClosuresFile,
		export.ReportFile, trajectoryPNG, loopClosurePNG, trajectoryHTML,
	} {
		if err := security.ValidatePathWithinDirectory(filepath.Join(dir, name), dir); err != nil {
			return err
		}
	}
	return nil
}

func writePlots(e *export.Exporter, data render.Data, o render.Options) ([]string, error) {
	if len(data.Trajectory) == 0 {
		keyframe.Diagf("empty trajectory, skipping plots")
		return nil, nil
	}

	traj, err := render.TrajectoryPlot(data, o)
	if err != nil {
		return nil, err
	}
	closures, err := render.LoopClosurePlot(data, o)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, img := range []struct {
		name string
		plot *plot.Plot
	}{
		{trajectoryPNG, traj},
		{loopClosurePNG, closures},
	} {
		path, err := writeWith(e, img.name, func(w io.Writer) error {
			return render.WritePNG(w, img.plot, o)
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeHTML(e *export.Exporter, data render.Data, o render.Options) (string, error) {
	return writeWith(e, trajectoryHTML, func(w io.Writer) error {
		return render.WriteTrajectoryHTML(w, data, o, render.DefaultAssetsHost)
	})
}

func writeWith(e *export.Exporter, name string, fn func(io.Writer) error) (string, error) {
	f, path, err := e.Create(name)
	if err != nil {
		return "", err
	}
	if err := fn(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func printSummary(w io.Writer, runID string, res *keyframe.Result, written []string) {
	s := res.Summary
	fmt.Fprintf(w, "Run %s\n", runID)
	fmt.Fprintf(w, "  Poses:            %d over %.3f s, path %.3f m (corrected %.3f m)\n",
		s.Poses, s.DurationSecs, s.PathLengthMeters, s.CorrectedPathLengthMeters)
	fmt.Fprintf(w, "  Detections:       %d kept, %d filtered, %d skipped\n",
		s.Detections, s.FilteredDetections, s.SkippedDetections)
	fmt.Fprintf(w, "  Associations:     %d on %d poses (mean confidence %.3f)\n",
		s.Associations, s.AssociatedPoses, s.MeanAssociatedConfidence)
	fmt.Fprintf(w, "  Loop closures:    %d (mean %.3f m, max %.3f m)\n",
		s.LoopClosures, s.MeanCorrectionMeters, s.MaxCorrectionMeters)
	for _, path := range written {
		fmt.Fprintf(w, "  Wrote %s\n", path)
	}
}

package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/banshee-data/keyframe.report/internal/keyframe"
	"github.com/banshee-data/keyframe.report/internal/version"
)

// Report is the JSON document written as report.json and stored with each
// run in the results database.
type Report struct {
	RunID          string              `json:"run_id"`
	CreatedAt      time.Time           `json:"created_at"`
	Version        string              `json:"version"`
	TrajectoryPath string              `json:"trajectory_path"`
	DetectionsPath string              `json:"detections_path"`
	Params         ReportParams        `json:"params"`
	Summary        keyframe.RunSummary `json:"summary"`
	Skipped        []SkippedLine       `json:"skipped_detections,omitempty"`
}

// ReportParams records the thresholds a run used.
type ReportParams struct {
	TimeThresholdSecs   float64  `json:"time_threshold_secs"`
	LoopThresholdMeters float64  `json:"loop_threshold_meters"`
	KeepLabels          []string `json:"keep_labels"`
}

// SkippedLine is a detection line that was dropped during parsing.
type SkippedLine struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Text   string `json:"text"`
}

// NewReport builds the report for res.
func NewReport(runID string, createdAt time.Time, res *keyframe.Result) Report {
	rep := Report{
		RunID:          runID,
		CreatedAt:      createdAt.UTC(),
		Version:        version.Version,
		TrajectoryPath: res.Inputs.TrajectoryPath,
		DetectionsPath: res.Inputs.DetectionsPath,
		Params: ReportParams{
			TimeThresholdSecs:   res.Params.TimeThresholdSecs,
			LoopThresholdMeters: res.Params.LoopThresholdMeters,
			KeepLabels:          res.Params.KeepLabels,
		},
		Summary: res.Summary,
	}
	if res.Detections != nil {
		for _, s := range res.Detections.Skipped {
			rep.Skipped = append(rep.Skipped, SkippedLine{Line: s.Line, Reason: s.Reason, Text: s.Text})
		}
	}
	return rep
}

// WriteReport writes rep as indented JSON.
func WriteReport(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

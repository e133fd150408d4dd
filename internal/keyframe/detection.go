package keyframe

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/keyframe.report/internal/config"
	"github.com/banshee-data/keyframe.report/internal/fsutil"
)

const minDetectionFields = 3

// DetectionSet is the outcome of loading a detection log: the kept events in
// file order plus the lines that were skipped and the count of well-formed
// events dropped by the label filter.
type DetectionSet struct {
	Events   []DetectionEvent
	Skipped  []SkippedRecord
	Filtered int
}

// LabelSet is a set of detection labels to keep.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet. With no labels it returns the default
// keep set from internal/config.
func NewLabelSet(labels ...string) LabelSet {
	if len(labels) == 0 {
		labels = config.DefaultKeepLabels
	}
	set := make(LabelSet, len(labels))
	for _, l := range labels {
		set[strings.TrimSpace(l)] = struct{}{}
	}
	return set
}

// Contains reports whether label is kept.
func (s LabelSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// LoadDetections reads a detection log from the local filesystem.
func LoadDetections(path string, keepLabels []string) (*DetectionSet, error) {
	return LoadDetectionsFS(fsutil.OSFileSystem{}, path, keepLabels)
}

// LoadDetectionsFS reads a detection log from fsys. The only error is failing
// to open the file (ErrMissingFile when it does not exist); malformed lines
// are recorded in DetectionSet.Skipped.
func LoadDetectionsFS(fsys fsutil.FileSystem, path string, keepLabels []string) (*DetectionSet, error) {
	f, err := openInput(fsys, path)
	if err != nil {
		Opsf("detection load failed: %v", err)
		return nil, err
	}
	defer f.Close()

	set := ParseDetections(f, path, keepLabels)
	Diagf("loaded %d detections from %s (%d skipped, %d filtered by label)",
		len(set.Events), path, len(set.Skipped), set.Filtered)
	return set, nil
}

// ParseDetections parses "timestamp, label, confidence" lines. Fields are
// comma separated with surrounding whitespace ignored; fields past the third
// are ignored. Lines with fewer than three fields, a non-numeric or
// non-finite timestamp, or a confidence that is not a number in [0, 1] are
// skipped with a warning. Surviving events whose label is not in keepLabels
// are dropped.
func ParseDetections(r io.Reader, name string, keepLabels []string) *DetectionSet {
	keep := NewLabelSet(keepLabels...)
	set := &DetectionSet{Events: make([]DetectionEvent, 0, 128)}

	skip := func(lineNo int, line, reason string) {
		rec := SkippedRecord{Line: lineNo, Text: line, Reason: reason}
		set.Skipped = append(set.Skipped, rec)
		Diagf("%s: skipping detection %s", name, rec)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		fields := strings.Split(line, ",")
		if len(fields) < minDetectionFields {
			skip(lineNo, line, fmt.Sprintf("expected %d comma-separated fields, got %d", minDetectionFields, len(fields)))
			continue
		}

		ts, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
			skip(lineNo, line, "invalid timestamp")
			continue
		}
		label := strings.TrimSpace(fields[1])
		conf, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil || math.IsNaN(conf) {
			skip(lineNo, line, "invalid confidence")
			continue
		}
		if conf < 0 || conf > 1 {
			skip(lineNo, line, "confidence outside [0, 1]")
			continue
		}

		if !keep.Contains(label) {
			set.Filtered++
			continue
		}
		set.Events = append(set.Events, DetectionEvent{Timestamp: ts, Label: label, Confidence: conf})
	}
	if err := scanner.Err(); err != nil {
		// A line longer than maxLineBytes or a failing reader ends the batch;
		// what was parsed so far is kept.
		skip(lineNo+1, "", fmt.Sprintf("read failed: %v", err))
	}

	return set
}

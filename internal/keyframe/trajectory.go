package keyframe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/keyframe.report/internal/fsutil"
	"gonum.org/v1/gonum/spatial/r3"
)

// minTrajectoryFields is timestamp + x + y + z.
const minTrajectoryFields = 4

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// LoadTrajectory reads a TUM-format trajectory from the local filesystem.
func LoadTrajectory(path string) (Trajectory, error) {
	return LoadTrajectoryFS(fsutil.OSFileSystem{}, path)
}

// LoadTrajectoryFS reads a TUM-format trajectory from fsys.
// Any malformed record aborts the load with a *ParseError and no partial
// trajectory is returned.
func LoadTrajectoryFS(fsys fsutil.FileSystem, path string) (Trajectory, error) {
	f, err := openInput(fsys, path)
	if err != nil {
		Opsf("trajectory load failed: %v", err)
		return nil, err
	}
	defer f.Close()

	traj, err := ParseTrajectory(f, path)
	if err != nil {
		Opsf("trajectory load aborted: %v", err)
		return nil, err
	}
	Diagf("loaded %d poses from %s", len(traj), path)
	return traj, nil
}

// ParseTrajectory parses TUM records ("timestamp tx ty tz [qx qy qz qw]").
// Lines beginning with '#' are comments. Every other line, blank ones
// included, must hold at least four tokens, all numeric and finite; extra
// fields are validated but not retained.
func ParseTrajectory(r io.Reader, name string) (Trajectory, error) {
	traj := make(Trajectory, 0, 256)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < minTrajectoryFields {
			return nil, &ParseError{
				File:   name,
				Line:   lineNo,
				Text:   line,
				Reason: fmt.Sprintf("expected at least %d fields, got %d", minTrajectoryFields, len(fields)),
			}
		}

		var values [minTrajectoryFields]float64
		for i, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, &ParseError{
					File:   name,
					Line:   lineNo,
					Text:   line,
					Reason: fmt.Sprintf("field %d is not numeric", i+1),
					Err:    err,
				}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ParseError{
					File:   name,
					Line:   lineNo,
					Text:   line,
					Reason: fmt.Sprintf("field %d is not finite", i+1),
				}
			}
			if i < minTrajectoryFields {
				values[i] = v
			}
		}

		traj = append(traj, Pose{
			Timestamp: values[0],
			Position:  r3.Vec{X: values[1], Y: values[2], Z: values[3]},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{
			File:   name,
			Line:   lineNo + 1,
			Reason: "read failed",
			Err:    err,
		}
	}

	return traj, nil
}

// openInput opens path on fsys, mapping a missing file to ErrMissingFile.
func openInput(fsys fsutil.FileSystem, path string) (fs.File, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

package export

import (
	"fmt"
	"io"

	"github.com/banshee-data/keyframe.report/internal/fsutil"
	"github.com/banshee-data/keyframe.report/internal/keyframe"
	"github.com/banshee-data/keyframe.report/internal/security"
)

// Output file names.
const (
	CorrectedTrajectoryFile = "corrected_trajectory.txt"
	AssociationsFile        = "associations.csv"
	LoopClosuresFile        = "loop_closures.csv"
	ReportFile              = "report.json"
)

// Options selects which optional artefacts Export writes. The corrected
// trajectory is always written.
type Options struct {
	CSV  bool
	JSON bool
}

// Exporter writes run artefacts into Dir on FS.
type Exporter struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewExporter returns an Exporter for dir. A nil fsys means the OS filesystem.
func NewExporter(fsys fsutil.FileSystem, dir string) *Exporter {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Exporter{FS: fsys, Dir: dir}
}

// Export writes the selected artefacts for res and returns the paths written.
func (e *Exporter) Export(res *keyframe.Result, rep Report, opts Options) ([]string, error) {
	if err := e.FS.MkdirAll(e.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	write := func(name string, fn func(io.Writer) error) error {
		path, err := e.writeFile(name, fn)
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(CorrectedTrajectoryFile, func(w io.Writer) error {
		return WriteTUM(w, res.Corrected)
	}); err != nil {
		return written, err
	}

	if opts.CSV {
		if err := write(AssociationsFile, func(w io.Writer) error {
			return WriteAssociationsCSV(w, res.Associations)
		}); err != nil {
			return written, err
		}
		if err := write(LoopClosuresFile, func(w io.Writer) error {
			return WriteLoopClosuresCSV(w, res.LoopClosures)
		}); err != nil {
			return written, err
		}
	}

	if opts.JSON {
		if err := write(ReportFile, func(w io.Writer) error {
			return WriteReport(w, rep)
		}); err != nil {
			return written, err
		}
	}

	keyframe.Opsf("exported %d files to %s", len(written), e.Dir)
	return written, nil
}

// Create opens name inside Dir for writing. Renderers use it to place their
// images next to the tables.
func (e *Exporter) Create(name string) (io.WriteCloser, string, error) {
	path, err := security.ResolveOutputPath(e.Dir, name)
	if err != nil {
		return nil, "", err
	}
	f, err := e.FS.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", path, err)
	}
	return f, path, nil
}

func (e *Exporter) writeFile(name string, fn func(io.Writer) error) (string, error) {
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

// Package export writes the artefacts of an analysis run: the corrected
// trajectory, the association and loop-closure tables and the run report.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/keyframe.report/internal/keyframe"
)

// TUMHeader opens every written trajectory. Orientation is not tracked, so
// the header says so before any pose carries the identity quaternion.
var TUMHeader = []string{
	"# orientation not retained: qx qy qz qw = 0 0 0 1",
	"# timestamp tx ty tz qx qy qz qw",
}

// WriteTUM writes traj in TUM format, one pose per line as
// "timestamp tx ty tz qx qy qz qw", after TUMHeader.
func WriteTUM(w io.Writer, traj keyframe.Trajectory) error {
	bw := bufio.NewWriter(w)
	for _, h := range TUMHeader {
		if _, err := fmt.Fprintln(bw, h); err != nil {
			return err
		}
	}
	for _, p := range traj {
		_, err := fmt.Fprintf(bw, "%s %s %s %s 0 0 0 1\n",
			formatFloat(p.Timestamp),
			formatFloat(p.Position.X),
			formatFloat(p.Position.Y),
			formatFloat(p.Position.Z))
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// formatFloat prints the shortest decimal that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

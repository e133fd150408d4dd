package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/banshee-data/keyframe.report/internal/keyframe"
)

// AssociationHeader is the header row of associations.csv.
var AssociationHeader = []string{
	"pose_index", "timestamp", "x", "y", "z",
	"event_timestamp", "label", "confidence", "time_diff",
}

// LoopClosureHeader is the header row of loop_closures.csv.
var LoopClosureHeader = []string{"index", "match_index", "distance", "dx", "dy", "dz"}

// WriteAssociationsCSV writes one row per association in input event order.
func WriteAssociationsCSV(w io.Writer, assocs []keyframe.Association) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AssociationHeader); err != nil {
		return err
	}
	for _, a := range assocs {
		row := []string{
			strconv.Itoa(a.PoseIndex),
			formatFloat(a.Pose.Timestamp),
			formatFloat(a.Pose.Position.X),
			formatFloat(a.Pose.Position.Y),
			formatFloat(a.Pose.Position.Z),
			formatFloat(a.Event.Timestamp),
			a.Event.Label,
			formatFloat(a.Event.Confidence),
			formatFloat(a.TimeDiff),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLoopClosuresCSV writes one row per applied loop-closure snap.
func WriteLoopClosuresCSV(w io.Writer, closures []keyframe.LoopClosure) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LoopClosureHeader); err != nil {
		return err
	}
	for _, c := range closures {
		row := []string{
			strconv.Itoa(c.Index),
			strconv.Itoa(c.MatchIndex),
			formatFloat(c.Distance),
			formatFloat(c.Correction.X),
			formatFloat(c.Correction.Y),
			formatFloat(c.Correction.Z),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

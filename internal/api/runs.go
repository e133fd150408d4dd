package api

import (
	"errors"
	"net/http"

	"github.com/banshee-data/keyframe.report/internal/db"
	"github.com/banshee-data/keyframe.report/internal/httputil"
	"github.com/banshee-data/keyframe.report/internal/keyframe"
	"github.com/banshee-data/keyframe.report/internal/render"
)

type poseJSON struct {
	Index     int     `json:"pose_index"`
	Timestamp float64 `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

type associationJSON struct {
	Pose           poseJSON `json:"pose"`
	EventTimestamp float64  `json:"event_timestamp"`
	Label          string   `json:"label"`
	Confidence     float64  `json:"confidence"`
	TimeDiff       float64  `json:"time_diff"`
}

type loopClosureJSON struct {
	Index      int     `json:"pose_index"`
	MatchIndex int     `json:"match_index"`
	Distance   float64 `json:"distance"`
	DX         float64 `json:"dx"`
	DY         float64 `json:"dy"`
	DZ         float64 `json:"dz"`
}

type skippedJSON struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Text   string `json:"text"`
}

type runDetailJSON struct {
	db.Run
	Skipped []skippedJSON `json:"skipped_detections"`
}

func toPoseJSON(i int, p keyframe.Pose) poseJSON {
	return poseJSON{Index: i, Timestamp: p.Timestamp, X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.List(r.Context())
	if err != nil {
		writeStoreError(w, "runs", err)
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, "run", err)
		return
	}
	skipped, err := s.runs.SkippedDetections(r.Context(), id)
	if err != nil {
		writeStoreError(w, "skipped detections", err)
		return
	}

	detail := runDetailJSON{Run: *run, Skipped: make([]skippedJSON, 0, len(skipped))}
	for _, sk := range skipped {
		detail.Skipped = append(detail.Skipped, skippedJSON{Line: sk.Line, Reason: sk.Reason, Text: sk.Text})
	}
	httputil.WriteJSONOK(w, detail)
}

func (s *Server) listAssociations(w http.ResponseWriter, r *http.Request) {
	assocs, err := s.runs.Associations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "associations", err)
		return
	}

	label := r.URL.Query().Get("label")
	out := make([]associationJSON, 0, len(assocs))
	for _, a := range assocs {
		if label != "" && a.Event.Label != label {
			continue
		}
		out = append(out, associationJSON{
			Pose:           toPoseJSON(a.PoseIndex, a.Pose),
			EventTimestamp: a.Event.Timestamp,
			Label:          a.Event.Label,
			Confidence:     a.Event.Confidence,
			TimeDiff:       a.TimeDiff,
		})
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) listLoopClosures(w http.ResponseWriter, r *http.Request) {
	closures, err := s.runs.LoopClosures(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "loop closures", err)
		return
	}
	out := make([]loopClosureJSON, 0, len(closures))
	for _, c := range closures {
		out = append(out, loopClosureJSON{
			Index:      c.Index,
			MatchIndex: c.MatchIndex,
			Distance:   c.Distance,
			DX:         c.Correction.X,
			DY:         c.Correction.Y,
			DZ:         c.Correction.Z,
		})
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showTrajectory(w http.ResponseWriter, r *http.Request) {
	traj, corrected, err := s.runs.Trajectories(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "trajectory", err)
		return
	}

	source := traj
	switch r.URL.Query().Get("kind") {
	case "", "original":
	case "corrected":
		source = corrected
	default:
		httputil.BadRequest(w, "Invalid 'kind' parameter (want original or corrected)")
		return
	}

	out := make([]poseJSON, len(source))
	for i, p := range source {
		out[i] = toPoseJSON(i, p)
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	plane := s.plane
	if q := r.URL.Query().Get("plane"); q != "" {
		p, err := render.ParseProjection(q)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		plane = p
	}

	traj, corrected, err := s.runs.Trajectories(r.Context(), id)
	if err != nil {
		writeStoreError(w, "trajectory", err)
		return
	}
	assocs, err := s.runs.Associations(r.Context(), id)
	if err != nil {
		writeStoreError(w, "associations", err)
		return
	}
	closures, err := s.runs.LoopClosures(r.Context(), id)
	if err != nil {
		writeStoreError(w, "loop closures", err)
		return
	}

	data := render.Data{
		Title:        "Run " + id,
		Trajectory:   traj,
		Corrected:    corrected,
		Associations: assocs,
		LoopClosures: closures,
	}
	opts := render.DefaultOptions()
	opts.Plane = plane
	page, err := render.RenderTrajectoryHTML(data, opts, s.assetsHost)
	if err != nil {
		if errors.Is(err, render.ErrNoPoses) {
			httputil.NotFound(w, "run has no poses to chart")
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteHTML(w, page)
}

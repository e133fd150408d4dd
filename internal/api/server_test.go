package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/keyframe.report/internal/db"
	"github.com/banshee-data/keyframe.report/internal/fsutil"
	"github.com/banshee-data/keyframe.report/internal/keyframe"
	"github.com/banshee-data/keyframe.report/internal/render"
	"github.com/banshee-data/keyframe.report/internal/timeutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTrajectory = `0.0 0 0 0
0.1 1 0 0
0.2 1 1 0
0.3 0.02 0.01 0
`

const testDetections = `0.0, person, 0.95
0.1, dog, 0.5
0.21, person, 0.6
nope
`

// setupServer stores one analysed run and returns a server over it.
func setupServer(t *testing.T) (*Server, *db.Run) {
	t.Helper()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("/in/traj.txt", testTrajectory)
	mfs.AddFile("/in/dets.txt", testDetections)
	params := keyframe.DefaultParams()
	params.KeepLabels = []string{"person", "dog"}
	res, err := keyframe.Analyse(context.Background(), params, keyframe.Inputs{
		TrajectoryPath: "/in/traj.txt",
		DetectionsPath: "/in/dets.txt",
		FS:             mfs,
	})
	require.NoError(t, err)

	store := db.NewRunStore(database, timeutil.NewMockClock(time.Unix(1700000000, 0)))
	run, err := store.Save(context.Background(), res)
	require.NoError(t, err)

	return NewServer(store, render.PlaneXY, ""), run
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestListRuns(t *testing.T) {
	s, run := setupServer(t)

	w := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, w.Code)
	runs := decode[[]map[string]any](t, w)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0]["run_id"])
}

func TestShowRun(t *testing.T) {
	s, run := setupServer(t)

	w := get(t, s, "/api/runs/"+run.ID)
	require.Equal(t, http.StatusOK, w.Code)

	detail := decode[struct {
		RunID   string `json:"run_id"`
		Summary struct {
			Poses        int `json:"poses"`
			Associations int `json:"associations"`
			LoopClosures int `json:"loop_closures"`
		} `json:"summary"`
		Skipped []skippedJSON `json:"skipped_detections"`
	}](t, w)
	assert.Equal(t, run.ID, detail.RunID)
	assert.Equal(t, 4, detail.Summary.Poses)
	assert.Equal(t, 3, detail.Summary.Associations)
	assert.Equal(t, 1, detail.Summary.LoopClosures)
	require.Len(t, detail.Skipped, 1)
	assert.Equal(t, 4, detail.Skipped[0].Line)
}

func TestShowRun_Errors(t *testing.T) {
	s, _ := setupServer(t)

	w := get(t, s, "/api/runs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(t, s, "/api/runs/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListAssociations(t *testing.T) {
	s, run := setupServer(t)

	w := get(t, s, "/api/runs/"+run.ID+"/associations")
	require.Equal(t, http.StatusOK, w.Code)
	assocs := decode[[]associationJSON](t, w)
	require.Len(t, assocs, 3)
	assert.Equal(t, "person", assocs[0].Label)
	assert.Equal(t, 0, assocs[0].Pose.Index)
	assert.Equal(t, "dog", assocs[1].Label)
	assert.Equal(t, 1, assocs[1].Pose.Index)
	assert.Equal(t, 2, assocs[2].Pose.Index)

	w = get(t, s, "/api/runs/"+run.ID+"/associations?label=dog")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]associationJSON](t, w), 1)
}

func TestListLoopClosures(t *testing.T) {
	s, run := setupServer(t)

	w := get(t, s, "/api/runs/"+run.ID+"/closures")
	require.Equal(t, http.StatusOK, w.Code)
	closures := decode[[]loopClosureJSON](t, w)
	require.Len(t, closures, 1)
	assert.Equal(t, 3, closures[0].Index)
	assert.Equal(t, 0, closures[0].MatchIndex)
	assert.InDelta(t, -0.02, closures[0].DX, 1e-12)
}

func TestShowTrajectory(t *testing.T) {
	s, run := setupServer(t)

	w := get(t, s, "/api/runs/"+run.ID+"/trajectory")
	require.Equal(t, http.StatusOK, w.Code)
	orig := decode[[]poseJSON](t, w)
	require.Len(t, orig, 4)
	assert.Equal(t, 0.02, orig[3].X)

	w = get(t, s, "/api/runs/"+run.ID+"/trajectory?kind=corrected")
	require.Equal(t, http.StatusOK, w.Code)
	corrected := decode[[]poseJSON](t, w)
	assert.InDelta(t, 0, corrected[3].X, 1e-12)
	assert.InDelta(t, 0, corrected[3].Y, 1e-12)

	w = get(t, s, "/api/runs/"+run.ID+"/trajectory?kind=sideways")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShowChart(t *testing.T) {
	s, run := setupServer(t)

	w := get(t, s, "/charts/runs/"+run.ID+"?plane=xz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	body := w.Body.String()
	assert.Contains(t, body, run.ID)
	assert.Contains(t, body, "plane=xz")

	w = get(t, s, "/charts/runs/"+run.ID+"?plane=diagonal")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(t, s, "/charts/runs/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowVersion(t *testing.T) {
	s, _ := setupServer(t)
	w := get(t, s, "/api/version")
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[map[string]string](t, w)
	assert.NotEmpty(t, v["version"])
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Contains(t, statusCodeColor(500), colorBoldRed)
}

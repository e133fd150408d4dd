package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/keyframe.report/internal/keyframe"
	"github.com/banshee-data/keyframe.report/internal/timeutil"
	"github.com/banshee-data/keyframe.report/internal/version"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrRunNotFound is returned when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidRunID is returned for IDs that are not UUIDs.
	ErrInvalidRunID = errors.New("invalid run id")
)

// Run is the stored header of one analysis run.
type Run struct {
	ID                  string              `json:"run_id"`
	CreatedAt           time.Time           `json:"created_at"`
	Version             string              `json:"version"`
	TrajectoryPath      string              `json:"trajectory_path"`
	DetectionsPath      string              `json:"detections_path"`
	TimeThresholdSecs   float64             `json:"time_threshold_secs"`
	LoopThresholdMeters float64             `json:"loop_threshold_meters"`
	KeepLabels          []string            `json:"keep_labels"`
	Summary             keyframe.RunSummary `json:"summary"`
}

// RunStore persists analysis results.
type RunStore struct {
	db    *DB
	clock timeutil.Clock
}

// NewRunStore returns a RunStore over db. A nil clock means wall time.
func NewRunStore(db *DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// Save stores res under a fresh run ID and returns the stored header.
func (s *RunStore) Save(ctx context.Context, res *keyframe.Result) (*Run, error) {
	run := &Run{
		ID:                  uuid.NewString(),
		CreatedAt:           s.clock.Now().UTC(),
		Version:             version.Version,
		TrajectoryPath:      res.Inputs.TrajectoryPath,
		DetectionsPath:      res.Inputs.DetectionsPath,
		TimeThresholdSecs:   res.Params.TimeThresholdSecs,
		LoopThresholdMeters: res.Params.LoopThresholdMeters,
		KeepLabels:          res.Params.KeepLabels,
		Summary:             res.Summary,
	}
	if err := s.insert(ctx, run, res); err != nil {
		return nil, err
	}
	keyframe.Opsf("stored run %s in %s", run.ID, s.db.Path())
	return run, nil
}

func (s *RunStore) insert(ctx context.Context, run *Run, res *keyframe.Result) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_at_ns, version, trajectory_path, detections_path,
			time_threshold_secs, loop_threshold_meters, keep_labels,
			poses, associations, loop_closures, summary_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), run.Version, run.TrajectoryPath, run.DetectionsPath,
		run.TimeThresholdSecs, run.LoopThresholdMeters, strings.Join(run.KeepLabels, ","),
		len(res.Trajectory), len(res.Associations), len(res.LoopClosures), string(summary))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	poseStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_poses (run_id, pose_index, timestamp, x, y, z, corrected_x, corrected_y, corrected_z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare poses: %w", err)
	}
	defer poseStmt.Close()
	for i, p := range res.Trajectory {
		c := p.Position
		if i < len(res.Corrected) {
			c = res.Corrected[i].Position
		}
		if _, err := poseStmt.ExecContext(ctx, run.ID, i, p.Timestamp,
			p.Position.X, p.Position.Y, p.Position.Z, c.X, c.Y, c.Z); err != nil {
			return fmt.Errorf("insert pose %d: %w", i, err)
		}
	}

	for seq, a := range res.Associations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_associations (run_id, seq, pose_index, event_timestamp, label, confidence, time_diff)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, seq, a.PoseIndex, a.Event.Timestamp, a.Event.Label, a.Event.Confidence, a.TimeDiff); err != nil {
			return fmt.Errorf("insert association %d: %w", seq, err)
		}
	}

	for _, c := range res.LoopClosures {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_loop_closures (run_id, pose_index, match_index, distance, dx, dy, dz)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, c.Index, c.MatchIndex, c.Distance, c.Correction.X, c.Correction.Y, c.Correction.Z); err != nil {
			return fmt.Errorf("insert loop closure %d: %w", c.Index, err)
		}
	}

	if res.Detections != nil {
		for _, sk := range res.Detections.Skipped {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO run_skipped_detections (run_id, line, reason, text) VALUES (?, ?, ?, ?)`,
				run.ID, sk.Line, sk.Reason, sk.Text); err != nil {
				return fmt.Errorf("insert skipped line %d: %w", sk.Line, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `run_id, created_at_ns, version, trajectory_path, detections_path,
	time_threshold_secs, loop_threshold_meters, keep_labels, summary_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		createdNs int64
		labels    string
		summary   string
	)
	if err := row.Scan(&run.ID, &createdNs, &run.Version, &run.TrajectoryPath, &run.DetectionsPath,
		&run.TimeThresholdSecs, &run.LoopThresholdMeters, &labels, &summary); err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, createdNs).UTC()
	if labels != "" {
		run.KeepLabels = strings.Split(labels, ",")
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("decode summary of run %s: %w", run.ID, err)
	}
	return &run, nil
}

// List returns every stored run, newest first.
func (s *RunStore) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at_ns DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func checkRunID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return nil
}

// Get returns the run with the given ID.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	if err := checkRunID(id); err != nil {
		return nil, err
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Trajectories returns the original and corrected trajectories of a run.
func (s *RunStore) Trajectories(ctx context.Context, id string) (keyframe.Trajectory, keyframe.CorrectedTrajectory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, x, y, z, corrected_x, corrected_y, corrected_z
		FROM run_poses WHERE run_id = ? ORDER BY pose_index`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query poses: %w", err)
	}
	defer rows.Close()

	traj := keyframe.Trajectory{}
	corrected := keyframe.Trajectory{}
	for rows.Next() {
		var ts float64
		var p, c r3.Vec
		if err := rows.Scan(&ts, &p.X, &p.Y, &p.Z, &c.X, &c.Y, &c.Z); err != nil {
			return nil, nil, err
		}
		traj = append(traj, keyframe.Pose{Timestamp: ts, Position: p})
		corrected = append(corrected, keyframe.Pose{Timestamp: ts, Position: c})
	}
	return traj, corrected, rows.Err()
}

// Associations returns the associations of a run in input event order.
func (s *RunStore) Associations(ctx context.Context, id string) ([]keyframe.Association, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.pose_index, p.timestamp, p.x, p.y, p.z,
		       a.event_timestamp, a.label, a.confidence, a.time_diff
		FROM run_associations a
		JOIN run_poses p ON p.run_id = a.run_id AND p.pose_index = a.pose_index
		WHERE a.run_id = ?
		ORDER BY a.seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query associations: %w", err)
	}
	defer rows.Close()

	assocs := []keyframe.Association{}
	for rows.Next() {
		var a keyframe.Association
		if err := rows.Scan(&a.PoseIndex, &a.Pose.Timestamp,
			&a.Pose.Position.X, &a.Pose.Position.Y, &a.Pose.Position.Z,
			&a.Event.Timestamp, &a.Event.Label, &a.Event.Confidence, &a.TimeDiff); err != nil {
			return nil, err
		}
		assocs = append(assocs, a)
	}
	return assocs, rows.Err()
}

// LoopClosures returns the loop-closure snaps of a run in pose order.
func (s *RunStore) LoopClosures(ctx context.Context, id string) ([]keyframe.LoopClosure, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT pose_index, match_index, distance, dx, dy, dz
		FROM run_loop_closures WHERE run_id = ? ORDER BY pose_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query loop closures: %w", err)
	}
	defer rows.Close()

	closures := []keyframe.LoopClosure{}
	for rows.Next() {
		var c keyframe.LoopClosure
		if err := rows.Scan(&c.Index, &c.MatchIndex, &c.Distance,
			&c.Correction.X, &c.Correction.Y, &c.Correction.Z); err != nil {
			return nil, err
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

// SkippedDetections returns the detection lines a run dropped.
func (s *RunStore) SkippedDetections(ctx context.Context, id string) ([]keyframe.SkippedRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT line, reason, text FROM run_skipped_detections WHERE run_id = ? ORDER BY line`, id)
	if err != nil {
		return nil, fmt.Errorf("query skipped detections: %w", err)
	}
	defer rows.Close()

	skipped := []keyframe.SkippedRecord{}
	for rows.Next() {
		var sk keyframe.SkippedRecord
		if err := rows.Scan(&sk.Line, &sk.Reason, &sk.Text); err != nil {
			return nil, err
		}
		skipped = append(skipped, sk)
	}
	return skipped, rows.Err()
}

// Delete removes a run and everything recorded with it.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	if err := checkRunID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

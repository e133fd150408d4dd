package keyframe

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/banshee-data/keyframe.report/internal/fsutil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const sampleTUM = `# ground truth trajectory
# timestamp tx ty tz qx qy qz qw
1.000000 0.0 0.0 0.0 0 0 0 1
2.000000 1.0 0.5 -0.25 0 0 0 1
3.5 2 1 0
`

func TestParseTrajectory_Sample(t *testing.T) {
	traj, err := ParseTrajectory(strings.NewReader(sampleTUM), "sample.txt")
	require.NoError(t, err)

	want := Trajectory{
		{Timestamp: 1, Position: r3.Vec{}},
		{Timestamp: 2, Position: r3.Vec{X: 1, Y: 0.5, Z: -0.25}},
		{Timestamp: 3.5, Position: r3.Vec{X: 2, Y: 1, Z: 0}},
	}
	if diff := cmp.Diff(want, traj); diff != "" {
		t.Errorf("ParseTrajectory mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTrajectory_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	var b strings.Builder
	want := make(Trajectory, 0, 200)
	ts := 1000.0
	for i := 0; i < 200; i++ {
		ts += rng.Float64() * 0.2
		p := Pose{Timestamp: ts, Position: r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}}
		want = append(want, p)
		if i%50 == 0 {
			b.WriteString("# keyframe block\n")
		}
		fmt.Fprintf(&b, "%s %s %s %s 0 0 0 1\n",
			strconv.FormatFloat(p.Timestamp, 'f', 6, 64),
			strconv.FormatFloat(p.Position.X, 'g', -1, 64),
			strconv.FormatFloat(p.Position.Y, 'g', -1, 64),
			strconv.FormatFloat(p.Position.Z, 'g', -1, 64))
	}

	got, err := ParseTrajectory(strings.NewReader(b.String()), "roundtrip.txt")
	require.NoError(t, err)
	require.Len(t, got, len(want))

	opt := cmpopts.EquateApprox(0, 1e-6)
	if diff := cmp.Diff(want, got, opt); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTrajectory_FailFast(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
		wantMsg  string
	}{
		{"non-numeric token", "1 0 0 0\n2 0 abc 0\n3 0 0 0\n", 2, "field 3 is not numeric"},
		{"too few fields", "1 0 0 0\n2 0 0\n", 2, "expected at least 4 fields"},
		{"non-numeric extra field", "1 0 0 0 0 0 0 x\n", 1, "field 8 is not numeric"},
		{"non-finite value", "1 0 NaN 0\n", 1, "field 3 is not finite"},
		{"half-written trailing line", "1 0 0 0\n2 0.5 0.", 2, "expected at least 4 fields"},
		{"comma separated", "1,0,0,0\n", 1, "expected at least 4 fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traj, err := ParseTrajectory(strings.NewReader(tt.input), "bad.txt")
			require.Error(t, err)
			assert.Nil(t, traj, "no partial trajectory may be returned")

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
			assert.Equal(t, "bad.txt", pe.File)
			assert.Equal(t, tt.wantLine, pe.Line)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), "bad.txt:")
		})
	}
}

func TestParseTrajectory_WrapsStrconvError(t *testing.T) {
	_, err := ParseTrajectory(strings.NewReader("1 0 zz 0\n"), "x.txt")
	var numErr *strconv.NumError
	assert.True(t, errors.As(err, &numErr), "ParseError should unwrap to the strconv error")
}

func TestParseTrajectory_CommentsOnly(t *testing.T) {
	traj, err := ParseTrajectory(strings.NewReader("# only comments\n#\n"), "empty.txt")
	require.NoError(t, err)
	assert.NotNil(t, traj)
	assert.Empty(t, traj)
}

func TestParseTrajectory_BlankLinesAreFatal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"empty line", "1.0 0 0 0\n\n2.0 1 0 0\n", 2},
		{"whitespace line", "1.0 0 0 0\n2.0 1 0 0\n   \n", 3},
		{"indented hash", "1.0 0 0 0\n  # note\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traj, err := ParseTrajectory(strings.NewReader(tt.input), "gaps.txt")
			assert.Nil(t, traj)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
			assert.Equal(t, tt.wantLine, pe.Line)
			if tt.name != "indented hash" {
				assert.Contains(t, pe.Reason, "got 0")
			}
		})
	}
}

func TestParseTrajectory_TrailingNewline(t *testing.T) {
	traj, err := ParseTrajectory(strings.NewReader("1.0 0 0 0\n2.0 1 0 0\n"), "ok.txt")
	require.NoError(t, err)
	assert.Len(t, traj, 2)
}

func TestLoadTrajectoryFS(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("/run/KeyFrameTrajectory.txt", sampleTUM)

	traj, err := LoadTrajectoryFS(mfs, "/run/KeyFrameTrajectory.txt")
	require.NoError(t, err)
	assert.Len(t, traj, 3)

	_, err = LoadTrajectoryFS(mfs, "/run/missing.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingFile)
	assert.Contains(t, err.Error(), "/run/missing.txt")
}

func TestLoadTrajectory_OS(t *testing.T) {
	_, err := LoadTrajectory("testdata-does-not-exist.txt")
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestTrajectoryCloneDoesNotAlias(t *testing.T) {
	orig := Trajectory{{Timestamp: 1, Position: r3.Vec{X: 1}}}
	c := orig.Clone()
	c[0].Position.X = 42
	assert.Equal(t, 1.0, orig[0].Position.X)
	assert.Equal(t, []float64{1}, orig.Timestamps())
	assert.Equal(t, []r3.Vec{{X: 1}}, orig.Positions())
}

package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveOutputPath(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    string
		wantErr string
	}{
		{name: "plain", file: "report.json", want: filepath.Join("/out", "report.json")},
		{name: "dotted", file: "corrected_trajectory.txt", want: filepath.Join("/out", "corrected_trajectory.txt")},
		{name: "empty", file: "", wantErr: "invalid output file name"},
		{name: "parent", file: "..", wantErr: "invalid output file name"},
		{name: "nested", file: "sub/report.json", wantErr: "must not contain a directory"},
		{name: "traversal", file: "../report.json", wantErr: "must not contain a directory"},
		{name: "backslash", file: `..\report.json`, wantErr: "must not contain a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOutputPath("/out", tt.file)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	for _, d := range []string{safeDir, unsafeDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("MkdirAll(%s): %v", d, err)
		}
	}
	if err := os.Symlink(unsafeDir, filepath.Join(safeDir, "evil-symlink")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "report.json"), false},
		{"nested new file", filepath.Join(safeDir, "plots", "trajectory.png"), false},
		{"dot dot escape", filepath.Join(safeDir, "..", "report.json"), true},
		{"sibling directory", filepath.Join(unsafeDir, "report.json"), true},
		{"through symlink", filepath.Join(safeDir, "evil-symlink", "report.json"), true},
		{"directory itself", safeDir, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%s) error = %v, wantError %v", tt.filePath, err, tt.wantError)
			}
		})
	}

	if err := ValidatePathWithinDirectory(filepath.Join(tmpDir, "x"), filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("expected error for a missing safe directory")
	}
}

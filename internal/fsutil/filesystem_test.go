package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_CreateOpenStat(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "out", "nested")

	if err := osfs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	path := filepath.Join(dir, "trajectory.txt")
	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := io.WriteString(w, "1.0 0 0 0\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if !Exists(osfs, path) {
		t.Fatalf("expected %s to exist", path)
	}
	if Exists(osfs, filepath.Join(dir, "missing.txt")) {
		t.Error("expected missing file to not exist")
	}

	f, err := osfs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "1.0 0 0 0\n" {
		t.Errorf("got %q", data)
	}

	info, err := osfs.Stat(dir)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}
	_ = os.Remove(path)
}

func TestMemoryFileSystem_AddFileAndOpen(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.AddFile("/data/trajectory.txt", "# comment\n1.0 0 0 0\n")

	f, err := mfs.Open("/data/trajectory.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "# comment\n1.0 0 0 0\n" {
		t.Errorf("got %q", data)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "trajectory.txt" || info.Size() != int64(len(data)) {
		t.Errorf("unexpected file info: name=%s size=%d", info.Name(), info.Size())
	}
}

func TestMemoryFileSystem_OpenMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_, err := mfs.Open("/nope.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if _, err := mfs.Stat("/nope.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist from Stat, got %v", err)
	}
}

func TestMemoryFileSystem_CreatePublishesOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Create("/out/report.json"); err == nil {
		t.Fatal("expected Create to fail without parent directory")
	}

	if err := mfs.MkdirAll("/out", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	w, err := mfs.Create("/out/report.json")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if data, _ := mfs.Contents("/out/report.json"); len(data) != 0 {
		t.Errorf("expected empty file before close, got %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, ok := mfs.Contents("/out/report.json")
	if !ok || string(data) != `{"ok":true}` {
		t.Errorf("got %q (ok=%v)", data, ok)
	}

	if got := mfs.Names(); len(got) != 1 || got[0] != "/out/report.json" {
		t.Errorf("Names() = %v", got)
	}
}

func TestMemoryFileSystem_MkdirAllParents(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		info, err := mfs.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%s) failed: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s should be a directory", dir)
		}
	}
	if !Exists(mfs, "/a/b") {
		t.Error("Exists(/a/b) = false")
	}
}

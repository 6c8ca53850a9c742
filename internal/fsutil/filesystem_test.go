package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	var fsys FileSystem = OSFileSystem{}

	sub := filepath.Join(dir, "charts", "run-1")
	if err := fsys.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := filepath.Join(sub, "counts.html")
	if fsys.Exists(path) {
		t.Fatal("file should not exist yet")
	}
	if err := fsys.WriteFile(path, []byte("<html/>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "<html/>" {
		t.Errorf("ReadFile = %q, want %q", got, "<html/>")
	}
	if !fsys.Exists(sub) {
		t.Error("directory should exist")
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	m := NewMemoryFileSystem()
	_, err := m.ReadFile("missing.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile error = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	m := NewMemoryFileSystem()
	data := []byte("abc")
	if err := m.WriteFile("./a/b.txt", data, 0o644); err != nil {
		t.Fatal(err)
	}
	data[0] = 'z'

	got, err := m.ReadFile("a/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abc" {
		t.Errorf("stored data was aliased: %q", got)
	}
	got[1] = 'z'
	again, _ := m.ReadFile("a/b.txt")
	if string(again) != "abc" {
		t.Errorf("returned data was aliased: %q", again)
	}
}

func TestMemoryFileSystem_DirsAndFiles(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("out/charts/run", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"out", "out/charts", "out/charts/run"} {
		if !m.Exists(p) {
			t.Errorf("Exists(%q) = false", p)
		}
	}
	_ = m.WriteFile("out/charts/run/b.png", nil, 0o644)
	_ = m.WriteFile("out/charts/run/a.html", nil, 0o644)
	_ = m.WriteFile("other/c.txt", nil, 0o644)

	files := m.Files("out/")
	if len(files) != 2 || files[0] != "out/charts/run/a.html" || files[1] != "out/charts/run/b.png" {
		t.Errorf("Files = %v", files)
	}
}

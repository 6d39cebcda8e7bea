package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, fsys FileSystem, name, body string) {
	t.Helper()
	w, err := fsys.Create(name)
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", name, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestFileSystems_CreateReadStat(t *testing.T) {
	tests := []struct {
		name string
		fsys FileSystem
		dir  string
	}{
		{"os", OSFileSystem{}, filepath.Join(t.TempDir(), "out", "run")},
		{"memory", NewMemoryFileSystem(), filepath.Join("out", "run")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fsys.MkdirAll(tt.dir, 0o755); err != nil {
				t.Fatalf("MkdirAll failed: %v", err)
			}
			info, err := tt.fsys.Stat(tt.dir)
			if err != nil || !info.IsDir() {
				t.Fatalf("Stat(dir) = %v, %v", info, err)
			}

			path := filepath.Join(tt.dir, "trees.csv")
			writeFile(t, tt.fsys, path, "label,area\n")

			data, err := tt.fsys.ReadFile(path)
			if err != nil || string(data) != "label,area\n" {
				t.Errorf("ReadFile = %q, %v", data, err)
			}
			info, err = tt.fsys.Stat(path)
			if err != nil || info.Size() != int64(len(data)) || info.IsDir() {
				t.Errorf("Stat = %v, %v", info, err)
			}

			f, err := tt.fsys.Open(path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer f.Close()
			got, err := io.ReadAll(f)
			if err != nil || string(got) != "label,area\n" {
				t.Errorf("ReadAll = %q, %v", got, err)
			}
		})
	}
}

func TestMemoryFileSystem_CreateVisibleAfterClose(t *testing.T) {
	fsys := NewMemoryFileSystem()
	w, err := fsys.Create("out/trees.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("1,2\n")); err != nil {
		t.Fatal(err)
	}
	if data, _ := fsys.ReadFile("out/trees.csv"); len(data) != 0 {
		t.Errorf("contents visible before Close: %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := fsys.Open("./out/trees.csv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	info, err := f.Stat()
	if err != nil || info.Name() != "trees.csv" || info.Size() != 4 {
		t.Errorf("Stat = %+v, %v", info, err)
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	fsys := NewMemoryFileSystem()
	if _, err := fsys.Open("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open error = %v, want ErrNotExist", err)
	}
	if _, err := fsys.ReadFile("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile error = %v, want ErrNotExist", err)
	}
	if _, err := fsys.Stat("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat error = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_DirectoryRules(t *testing.T) {
	fsys := NewMemoryFileSystem()
	if err := fsys.MkdirAll("a/b/c", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		info, err := fsys.Stat(dir)
		if err != nil || !info.Mode().IsDir() {
			t.Errorf("Stat(%s) = %+v, %v", dir, info, err)
		}
	}
	if _, err := fsys.Open("a/b"); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("Open(dir) error = %v, want ErrInvalid", err)
	}

	writeFile(t, fsys, "a/file", "x")
	if err := fsys.MkdirAll("a/file/sub", 0o755); !errors.Is(err, fs.ErrExist) {
		t.Errorf("MkdirAll through a file error = %v, want ErrExist", err)
	}
}

func TestMemoryFileSystem_ReadFileReturnsCopy(t *testing.T) {
	fsys := NewMemoryFileSystem()
	writeFile(t, fsys, "x", "abc")
	got, _ := fsys.ReadFile("x")
	got[1] = 'z'
	again, _ := fsys.ReadFile("x")
	if string(again) != "abc" {
		t.Errorf("stored data mutated: %q", again)
	}
}

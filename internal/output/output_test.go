package output

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestPathFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"press.ssm", "press.txt"},
		{"/data/projects/press.ssm", "/data/projects/press.txt"},
		{"dir.v2/press", "dir.v2/press.txt"},
		{"press.backup.ssm", "press.backup.txt"},
		{"notes.txt", "notes.txt.txt"},
		{"NOTES.TXT", "NOTES.TXT.txt"},
	}
	for _, tt := range tests {
		if got := PathFor(tt.in); got != tt.want {
			t.Errorf("PathFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "press.txt")
	if err := os.WriteFile(path, []byte("old content\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Write(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "Project\n  name: Press\n")
		return err
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Project\n  name: Press\n" {
		t.Errorf("content = %q", got)
	}
	assertOnlyFiles(t, dir, "press.txt")
}

func TestWriteProducerErrorKeepsNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "press.txt")
	boom := errors.New("boom")

	err := Write(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	var we *WriteError
	if errors.As(err, &we) {
		t.Errorf("producer error should not become a WriteError: %v", err)
	}
	assertOnlyFiles(t, dir)
}

func TestWriteMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "press.txt")
	err := Write(path, func(w io.Writer) error { return nil })
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if we.Path != path {
		t.Errorf("Path = %q, want %q", we.Path, path)
	}
}

func TestWriteOntoDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "press.txt")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	err := Write(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "x\n")
		return err
	})
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	assertOnlyFiles(t, dir, "press.txt")
}

func TestDiscard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "press.txt")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Discard(path); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("stale output still present: %v", err)
	}
	if err := Discard(path); err != nil {
		t.Errorf("Discard of a missing file: %v", err)
	}
}

func TestDiscardLeavesNonRegularFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "press.txt")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "target")
	if err := os.WriteFile(target, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	for _, path := range []string{sub, link} {
		if err := Discard(path); err != nil {
			t.Errorf("Discard(%s): %v", filepath.Base(path), err)
		}
	}
	if fi, err := os.Stat(sub); err != nil || !fi.IsDir() {
		t.Errorf("directory was removed: %v", err)
	}
	if _, err := os.Lstat(link); err != nil {
		t.Errorf("symlink was removed: %v", err)
	}
	assertOnlyFiles(t, dir, "link.txt", "press.txt", "target")
}

// assertOnlyFiles fails unless dir holds exactly the named entries, so a
// leftover temporary file is caught.
func assertOnlyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if len(got) != len(names) {
		t.Fatalf("directory holds %v, want %v", got, names)
	}
	for i := range names {
		if got[i] != names[i] {
			t.Errorf("directory holds %v, want %v", got, names)
		}
	}
}

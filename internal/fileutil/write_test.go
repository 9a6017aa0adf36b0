package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "file.txt")

	if err := WriteFileAtomic(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")

	if err := WriteFileAtomic(path, []byte("v1"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("v2"), 0644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, found %d entries", len(entries))
	}
	data, _ := os.ReadFile(path)
	if string(data) != "v2" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestHashBytesStableAndShort(t *testing.T) {
	a := HashBytes([]byte("content"))
	b := HashBytes([]byte("content"))
	c := HashBytes([]byte("different"))

	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("distinct content produced identical hash")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-char hash, got %d", len(a))
	}
}

func TestScanTrackedFilesSkipsIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "app/main.py", "print('hi')\n")
	writeFixture(t, dir, "app/notes.txt", "not code\n")
	writeFixture(t, dir, "__pycache__/main.pyc", "binary\n")

	files, err := ScanTrackedFiles(dir, []string{".py"}, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(files) != 1 || files[0].Path != "app/main.py" {
		t.Fatalf("unexpected tracked files: %+v", files)
	}
	if files[0].Hash == "" {
		t.Fatalf("tracked file missing hash")
	}
}

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

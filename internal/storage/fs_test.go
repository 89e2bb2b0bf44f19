package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/cardsmith/internal/apperr"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempStore(t)
	content := []byte("\x89PNG fake")
	if err := s.Write("avatar.png", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("avatar.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("del.png", []byte("bye"))
	if err := s.Delete("del.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := s.Read("del.png")
	if !errors.Is(err, os.ErrNotExist) || !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Read after delete: %v, want ErrNotExist and ErrNotFound", err)
	}
	if err := s.Delete("del.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete: %v, want ErrNotFound", err)
	}
}

func TestList_OnlyImages(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("a.png", []byte("a"))
	_ = s.Write("b.GIF", []byte("b"))
	_ = s.Write("notes.txt", []byte("nope"))
	if err := os.Mkdir(filepath.Join(s.root, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2 (%v)", len(items), items)
	}
	for _, it := range items {
		if it.Checksum == "" || it.Size == 0 {
			t.Errorf("incomplete metadata: %+v", it)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.png",
		"/etc/shadow",
		"sub/inner.png",
		".hidden.png",
		"",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("atomic.png", []byte("original"))
	if err := s.Write("atomic.png", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.png")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".cardsmith-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "cardsmith-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestSniffExtension(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
		ok   bool
	}{
		{"png", []byte("\x89PNG\r\n\x1a\n0000"), ".png", true},
		{"gif", []byte("GIF89a000000"), ".gif", true},
		{"jpeg", []byte("\xff\xd8\xff\xe0000000"), ".jpg", true},
		{"text", []byte("hello there"), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SniffExtension(tc.data)
			if got != tc.want || ok != tc.ok {
				t.Errorf("SniffExtension = %q, %v; want %q, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

package upload

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ====================================================================
// TEST HELPERS
// ====================================================================

func newTestStaging(t *testing.T) *Staging {
	t.Helper()
	s, err := NewStaging(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}
	return s
}

// buildForm writes a multipart body with one file part per entry and
// parses it back, returning the file headers the handler would see.
func buildForm(t *testing.T, parts map[string]string) []*multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		switch {
		case strings.HasSuffix(name, ".png"):
			h.Set("Content-Type", "image/png")
		case strings.HasSuffix(name, ".gif"):
			h.Set("Content-Type", "image/gif")
		case strings.HasSuffix(name, ".txt"):
			h.Set("Content-Type", "text/plain")
		default:
			h.Set("Content-Type", "image/jpeg")
		}
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("writing part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}

	r := multipart.NewReader(&buf, w.Boundary())
	form, err := r.ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("ReadForm() error = %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["files"]
}

// ====================================================================
// STAGING
// ====================================================================

func TestStage_WritesFilesToDisk(t *testing.T) {
	s := newTestStaging(t)

	files, err := s.Stage(buildForm(t, map[string]string{
		"front.jpg": "front-bytes",
		"rear.png":  "rear-bytes",
	}), 10)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("staged %d files, want 2", len(files))
	}

	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			t.Fatalf("reading staged file: %v", err)
		}
		if len(data) == 0 {
			t.Errorf("staged file %s is empty", f.Path)
		}
		if filepath.Dir(f.Path) != s.dir {
			t.Errorf("staged file %s outside staging dir %s", f.Path, s.dir)
		}
	}
}

func TestStage_KeepsExtensionFromContentType(t *testing.T) {
	s := newTestStaging(t)

	files, err := s.Stage(buildForm(t, map[string]string{"photo.png": "x"}), 10)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if ext := filepath.Ext(files[0].Path); ext != ".png" {
		t.Errorf("staged extension = %q, want .png", ext)
	}
}

func TestStage_RejectsTooManyFiles(t *testing.T) {
	s := newTestStaging(t)

	headers := buildForm(t, map[string]string{"a.jpg": "a", "b.jpg": "b"})
	if _, err := s.Stage(headers, 1); err == nil {
		t.Fatal("Stage() with 2 files and limit 1 succeeded, want error")
	}
}

func TestStage_RejectsUnsupportedType(t *testing.T) {
	s := newTestStaging(t)

	if _, err := s.Stage(buildForm(t, map[string]string{"notes.txt": "hi"}), 10); err == nil {
		t.Fatal("Stage() accepted text/plain, want error")
	}
}

func TestStage_RejectsOversizedFile(t *testing.T) {
	s := newTestStaging(t)

	big := strings.Repeat("x", MaxFileSize+1)
	if _, err := s.Stage(buildForm(t, map[string]string{"big.jpg": big}), 10); err == nil {
		t.Fatal("Stage() accepted oversized file, want error")
	}
}

func TestStage_FailureLeavesNoArtifacts(t *testing.T) {
	s := newTestStaging(t)

	// Second file fails the type check after the first is already on disk.
	headers := buildForm(t, map[string]string{"ok.jpg": "ok", "zz.txt": "no"})
	if _, err := s.Stage(headers, 10); err == nil {
		t.Fatal("Stage() succeeded, want error")
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatalf("reading staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir has %d leftover files, want 0", len(entries))
	}
}

// ====================================================================
// CLEANUP
// ====================================================================

func TestCleanup_RemovesStagedFiles(t *testing.T) {
	s := newTestStaging(t)

	files, err := s.Stage(buildForm(t, map[string]string{"a.jpg": "a", "b.jpg": "b"}), 10)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	s.Cleanup(files)

	for _, f := range files {
		if _, err := os.Stat(f.Path); !os.IsNotExist(err) {
			t.Errorf("file %s still exists after Cleanup", f.Path)
		}
	}
}

func TestCleanup_ToleratesAlreadyRemovedFiles(t *testing.T) {
	s := newTestStaging(t)

	files, err := s.Stage(buildForm(t, map[string]string{"a.jpg": "a"}), 10)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	s.Cleanup(files)
	s.Cleanup(files) // second pass must be a no-op, not a panic or error
}

func TestPaths(t *testing.T) {
	files := []File{{Path: "/tmp/a.jpg"}, {Path: "/tmp/b.png"}}
	got := Paths(files)
	if len(got) != 2 || got[0] != "/tmp/a.jpg" || got[1] != "/tmp/b.png" {
		t.Errorf("Paths() = %v", got)
	}
}

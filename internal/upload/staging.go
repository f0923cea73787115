// Package upload manages staged upload artifacts: files received in a
// multipart request and held on local disk until they are transferred to
// the media host.
//
// LIFECYCLE OF A STAGED FILE:
// 1. The handler parses the multipart form and calls Stage
// 2. Stage writes each part to the staging directory under a unique name
// 3. The handler immediately defers Cleanup — from that point the files
//    are guaranteed to be removed whatever happens next (validation
//    failure, auth failure, a mid-sequence upload failure, success)
// 4. The service uploads the staged paths to the media host
//
// Cleanup is an unconditional finalizer, not a best-effort retry: it always
// runs, and a file that survives it is only ever the result of a cleanup
// error, which is logged.
package upload

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/rs/xid"
)

// MaxFileSize caps each staged file at 5 MiB, matching the media host's
// sensible limit for listing photos.
const MaxFileSize = 5 << 20

// allowedTypes is the image mime allow-list for listing photos.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// File is one staged upload artifact.
type File struct {
	Path string // absolute path in the staging directory
	Name string // client-supplied filename, for logging only
}

// Staging writes incoming multipart files to a dedicated directory and
// removes them again. One Staging is shared by all requests; per-request
// state lives in the returned []File.
type Staging struct {
	dir    string
	logger *slog.Logger
}

// NewStaging creates the staging directory if needed.
func NewStaging(dir string, logger *slog.Logger) (*Staging, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: creating staging dir %s: %w", dir, err)
	}
	return &Staging{dir: dir, logger: logger}, nil
}

// Stage writes each multipart file to disk and returns the staged files.
//
// Enforced here, before anything is written where possible:
//   - at most max files (the 10-image create limit and 1-image update
//     limit are applied at this field constraint, ahead of any upload)
//   - each file within MaxFileSize
//   - each file an allowed image type
//
// On any failure the files staged so far are removed before returning, so
// a failed Stage never leaks artifacts.
func (s *Staging) Stage(headers []*multipart.FileHeader, max int) ([]File, error) {
	if len(headers) > max {
		return nil, fmt.Errorf("upload: too many files: got %d, limit %d", len(headers), max)
	}

	staged := make([]File, 0, len(headers))
	fail := func(err error) ([]File, error) {
		s.Cleanup(staged)
		return nil, err
	}

	for _, fh := range headers {
		if fh.Size > MaxFileSize {
			return fail(fmt.Errorf("upload: file %s exceeds %d bytes", fh.Filename, MaxFileSize))
		}

		ext, ok := allowedTypes[fh.Header.Get("Content-Type")]
		if !ok {
			return fail(fmt.Errorf("upload: file %s has unsupported type %q", fh.Filename, fh.Header.Get("Content-Type")))
		}

		src, err := fh.Open()
		if err != nil {
			return fail(fmt.Errorf("upload: opening part %s: %w", fh.Filename, err))
		}

		path := filepath.Join(s.dir, xid.New().String()+ext)
		dst, err := os.Create(path)
		if err != nil {
			src.Close()
			return fail(fmt.Errorf("upload: creating staged file: %w", err))
		}

		// LimitReader guards against a lying Content-Length: copy one
		// byte past the cap and reject if it arrives.
		n, err := io.Copy(dst, io.LimitReader(src, MaxFileSize+1))
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			staged = append(staged, File{Path: path, Name: fh.Filename})
			return fail(fmt.Errorf("upload: writing staged file for %s: %w", fh.Filename, err))
		}
		if n > MaxFileSize {
			staged = append(staged, File{Path: path, Name: fh.Filename})
			return fail(fmt.Errorf("upload: file %s exceeds %d bytes", fh.Filename, MaxFileSize))
		}

		staged = append(staged, File{Path: path, Name: fh.Filename})
	}

	return staged, nil
}

// Cleanup removes every staged file. Failures are logged and do not stop
// the remaining removals; a file already gone counts as removed.
func (s *Staging) Cleanup(files []File) {
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to remove staged upload",
				slog.String("path", f.Path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Paths returns just the on-disk paths of the staged files, in order.
func Paths(files []File) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

// Package upload validates incoming media files and persists them to a
// scratch directory for the duration of one request.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// MaxBatchBytes is the upload ceiling for the non-streaming analysis endpoint.
const MaxBatchBytes = 15 << 20

var (
	ErrInvalidMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

var allowedTypes = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"audio/x-m4a": true,
	"audio/aac":   true,
	"audio/ogg":   true,
	"audio/webm":  true,
	"audio/flac":  true,
	"video/mp4":   true,
	"video/webm":  true,
}

var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".mp4":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".webm": true,
	".flac": true,
}

// Store writes validated uploads into a scratch directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save validates the part against the media allow-list and copies it to a
// scratch file. A maxBytes of zero disables the size ceiling; otherwise the
// ceiling is enforced on the bytes actually copied, not the declared size.
// On success the caller owns the returned path and must invoke cleanup when
// done with it. On error no scratch file is left behind.
func (s *Store) Save(file io.Reader, header *multipart.FileHeader, maxBytes int64) (string, func(), error) {
	if err := validate(header); err != nil {
		return "", nil, err
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	f, err := os.CreateTemp(s.dir, "upload-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("creating scratch file: %w", err)
	}

	path := f.Name()
	cleanup := func() {
		os.Remove(path)
	}

	src := file
	if maxBytes > 0 {
		src = io.LimitReader(file, maxBytes+1)
	}

	written, err := io.Copy(f, src)
	f.Close()

	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("writing scratch file: %w", err)
	}

	if maxBytes > 0 && written > maxBytes {
		cleanup()
		return "", nil, ErrPayloadTooLarge
	}

	return path, cleanup, nil
}

// validate checks the declared Content-Type against the allow-list, falling
// back to the filename extension when the part carries no usable type.
func validate(header *multipart.FileHeader) error {
	ct := header.Header.Get("Content-Type")
	if ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			ct = mediaType
		}
	}

	if allowedTypes[strings.ToLower(ct)] {
		return nil
	}

	if ct == "" || ct == "application/octet-stream" {
		if allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrInvalidMediaType, ct)
}

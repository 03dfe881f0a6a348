// Package uploads keeps uploaded payroll workbooks on local disk under a
// content-addressed name.
package uploads

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payledger/internal/models"
)

// XLSXContentType is the only content type accepted for imports.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultMaxSize bounds an upload when the store is created without a limit.
const DefaultMaxSize int64 = 20 << 20

var (
	ErrEmptyUpload     = errors.New("upload is empty")
	ErrUploadTooLarge  = errors.New("upload exceeds the size limit")
	ErrUnsupportedType = errors.New("upload is not an xlsx workbook")
	ErrInvalidLocation = errors.New("invalid stored location")
)

// Store writes uploads into a single directory.
type Store struct {
	dir     string
	maxSize int64
}

// NewStore creates dir if needed. maxSize <= 0 uses DefaultMaxSize.
func NewStore(dir string, maxSize int64) (*Store, error) {
	if dir == "" {
		return nil, errors.New("uploads directory is required")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	return &Store{dir: dir, maxSize: maxSize}, nil
}

// Save copies r to the store and describes the stored file. The stored name is
// the base58 encoded SHA256 of the content, so uploading the same workbook
// twice reuses one file.
func (s *Store) Save(originalName string, r io.Reader) (*models.SourceFile, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	digest := sha256.New()
	crc := crc64nvme.New()

	size, err := io.Copy(io.MultiWriter(tmp, digest, crc), io.LimitReader(r, s.maxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	switch {
	case size == 0:
		return nil, ErrEmptyUpload
	case size > s.maxSize:
		return nil, fmt.Errorf("%w of %d bytes", ErrUploadTooLarge, s.maxSize)
	}

	mtype, err := mimetype.DetectFile(tmpName)
	if err != nil {
		return nil, fmt.Errorf("failed to detect upload type: %w", err)
	}
	if !mtype.Is(XLSXContentType) {
		return nil, fmt.Errorf("%w: detected %s", ErrUnsupportedType, mtype.String())
	}

	location := base58.Encode(digest.Sum(nil)) + mtype.Extension()
	if err := os.Rename(tmpName, filepath.Join(s.dir, location)); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	log.Debug().Str("original_name", originalName).Str("location", location).Int64("size", size).Msg("stored upload")

	return &models.SourceFile{
		OriginalName:   filepath.Base(originalName),
		StoredLocation: location,
		Checksum:       "crc64nvme:" + strconv.FormatUint(crc.Sum64(), 16),
		ContentType:    mtype.String(),
		Size:           size,
	}, nil
}

// Open returns the stored file at location, as returned by Save.
func (s *Store) Open(location string) (*os.File, error) {
	if location == "" || location != filepath.Base(location) || strings.HasPrefix(location, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}

	f, err := os.Open(filepath.Join(s.dir, location))
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	return f, nil
}

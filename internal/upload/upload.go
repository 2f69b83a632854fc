package upload

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/diagnostic-service/internal/config"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type: only PDF, JPEG, JPG and PNG are allowed")
	ErrFileTooLarge        = errors.New("file exceeds the maximum allowed size")
	ErrTooManyFiles        = errors.New("too many files in request")
)

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

// Store writes diagnostic attachments beneath a type-segmented directory
// tree (uploads/patients/diagnostics). Stored names embed the patient id,
// a millisecond timestamp and a random suffix so concurrent uploads never
// collide.
type Store struct {
	dir         string
	maxFileSize int64
	maxFiles    int
	log         *zap.Logger
}

func NewStore(cfg config.UploadConfig, log *zap.Logger) *Store {
	return &Store{
		dir:         filepath.Join(cfg.Dir, "patients", "diagnostics"),
		maxFileSize: cfg.MaxFileSize,
		maxFiles:    cfg.MaxFilesPerReq,
		log:         log,
	}
}

// StagedFile describes one accepted file already written to disk.
type StagedFile struct {
	OriginalName string
	StoredName   string
	Path         string
	Ext          string
	MimeType     string
	Size         int64
}

// Stage tracks every file written during a single request so that a failed
// creation can remove all of them, whichever step failed.
type Stage struct {
	store *Store
	files []StagedFile
}

func (s *Store) NewStage() *Stage {
	return &Stage{store: s}
}

// Add validates a multipart part and persists it. Both the extension and
// the declared MIME type must be in the allow-list; passing one check
// alone is not enough.
func (st *Stage) Add(fh *multipart.FileHeader, patientID uuid.UUID) (*StagedFile, error) {
	if st.store.maxFiles > 0 && len(st.files) >= st.store.maxFiles {
		return nil, fmt.Errorf("%w (limit %d)", ErrTooManyFiles, st.store.maxFiles)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	mimeType := fh.Header.Get("Content-Type")
	if !allowedExtensions[ext] || !allowedMimeTypes[mimeType] {
		return nil, fmt.Errorf("%q (%s): %w", fh.Filename, mimeType, ErrUnsupportedFileType)
	}

	if fh.Size > st.store.maxFileSize {
		return nil, fmt.Errorf("%q (%d bytes): %w", fh.Filename, fh.Size, ErrFileTooLarge)
	}

	if err := os.MkdirAll(st.store.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	storedName := fmt.Sprintf("diagnostic-%s-%d_%d%s",
		patientID, time.Now().UnixMilli(), rand.IntN(1_000_000_000), ext)
	path := filepath.Join(st.store.dir, storedName)

	if err := writeFile(fh, path); err != nil {
		return nil, fmt.Errorf("storing %q: %w", fh.Filename, err)
	}

	staged := StagedFile{
		OriginalName: fh.Filename,
		StoredName:   storedName,
		Path:         path,
		Ext:          strings.TrimPrefix(ext, "."),
		MimeType:     mimeType,
		Size:         fh.Size,
	}
	st.files = append(st.files, staged)
	return &staged, nil
}

func (st *Stage) Files() []StagedFile {
	return st.files
}

func (st *Stage) Len() int {
	return len(st.files)
}

// Discard removes every staged file from disk and reports how many
// removals failed. Failures are logged, never escalated, so they cannot
// mask the error that triggered the cleanup.
func (st *Stage) Discard() int {
	failed := 0
	for _, f := range st.files {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			failed++
			st.store.log.Error("failed to remove staged upload",
				zap.String("path", f.Path),
				zap.Error(err),
			)
		}
	}
	st.files = nil
	return failed
}

func writeFile(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}

package upload

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/clinicore/diagnostic-service/internal/config"
)

func newTestStore(t *testing.T, maxSize int64, maxFiles int) *Store {
	t.Helper()
	return NewStore(config.UploadConfig{
		Dir:            t.TempDir(),
		MaxFileSize:    maxSize,
		MaxFilesPerReq: maxFiles,
	}, zap.NewNop())
}

// makeFileHeader builds a real multipart.FileHeader by writing and re-parsing
// an in-memory multipart form.
func makeFileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="documents"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	assert.NoError(t, err)
	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	reader := multipart.NewReader(&buf, w.Boundary())
	form, err := reader.ReadForm(32 << 20)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["documents"]
	assert.Len(t, files, 1)
	return files[0]
}

func TestStageAddAcceptsAllowedFile(t *testing.T) {
	store := newTestStore(t, 10<<20, 5)
	stage := store.NewStage()
	patientID := uuid.New()

	fh := makeFileHeader(t, "report.pdf", "application/pdf", []byte("%PDF-1.4 test"))

	staged, err := stage.Add(fh, patientID)
	assert.NoError(t, err)
	assert.Equal(t, "report.pdf", staged.OriginalName)
	assert.Equal(t, "pdf", staged.Ext)
	assert.Equal(t, "application/pdf", staged.MimeType)
	assert.True(t, strings.HasPrefix(staged.StoredName, "diagnostic-"+patientID.String()+"-"))
	assert.True(t, strings.HasSuffix(staged.StoredName, ".pdf"))

	// File is actually on disk under the type-segmented tree
	assert.FileExists(t, staged.Path)
	assert.Equal(t, filepath.Join("patients", "diagnostics"), filepath.Join(
		filepath.Base(filepath.Dir(filepath.Dir(staged.Path))),
		filepath.Base(filepath.Dir(staged.Path)),
	))
	assert.Equal(t, 1, stage.Len())
}

func TestStageAddRejectsDisallowedExtension(t *testing.T) {
	store := newTestStore(t, 10<<20, 5)
	stage := store.NewStage()

	// MIME type is allowed, extension is not; both checks must pass
	fh := makeFileHeader(t, "malware.exe", "application/pdf", []byte("MZ"))

	_, err := stage.Add(fh, uuid.New())
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	assert.Equal(t, 0, stage.Len())
}

func TestStageAddRejectsDisallowedMimeType(t *testing.T) {
	store := newTestStore(t, 10<<20, 5)
	stage := store.NewStage()

	// Extension is allowed, declared MIME type is not
	fh := makeFileHeader(t, "report.pdf", "application/zip", []byte("PK"))

	_, err := stage.Add(fh, uuid.New())
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	assert.Equal(t, 0, stage.Len())
}

func TestStageAddRejectsOversizedFile(t *testing.T) {
	store := newTestStore(t, 8, 5)
	stage := store.NewStage()

	fh := makeFileHeader(t, "scan.png", "image/png", []byte("0123456789"))

	_, err := stage.Add(fh, uuid.New())
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, 0, stage.Len())
}

func TestStageAddEnforcesFileCountLimit(t *testing.T) {
	store := newTestStore(t, 10<<20, 1)
	stage := store.NewStage()
	patientID := uuid.New()

	_, err := stage.Add(makeFileHeader(t, "a.jpg", "image/jpeg", []byte("a")), patientID)
	assert.NoError(t, err)

	_, err = stage.Add(makeFileHeader(t, "b.jpg", "image/jpeg", []byte("b")), patientID)
	assert.ErrorIs(t, err, ErrTooManyFiles)
	assert.Equal(t, 1, stage.Len())
}

func TestStageDiscardRemovesAllStagedFiles(t *testing.T) {
	store := newTestStore(t, 10<<20, 5)
	stage := store.NewStage()
	patientID := uuid.New()

	first, err := stage.Add(makeFileHeader(t, "a.png", "image/png", []byte("a")), patientID)
	assert.NoError(t, err)
	second, err := stage.Add(makeFileHeader(t, "b.jpeg", "image/jpeg", []byte("b")), patientID)
	assert.NoError(t, err)

	assert.Equal(t, 0, stage.Discard())

	assert.NoFileExists(t, first.Path)
	assert.NoFileExists(t, second.Path)
	assert.Equal(t, 0, stage.Len())
}

func TestStageDiscardIsSafeWhenFileAlreadyGone(t *testing.T) {
	store := newTestStore(t, 10<<20, 5)
	stage := store.NewStage()

	staged, err := stage.Add(makeFileHeader(t, "a.png", "image/png", []byte("a")), uuid.New())
	assert.NoError(t, err)
	assert.NoError(t, os.Remove(staged.Path))

	// Missing files are not a cleanup failure
	assert.Equal(t, 0, stage.Discard())
	assert.Equal(t, 0, stage.Len())
}

func TestStoredNamesAreUniqueAcrossAdds(t *testing.T) {
	store := newTestStore(t, 10<<20, 5)
	stage := store.NewStage()
	patientID := uuid.New()

	a, err := stage.Add(makeFileHeader(t, "same.png", "image/png", []byte("a")), patientID)
	assert.NoError(t, err)
	b, err := stage.Add(makeFileHeader(t, "same.png", "image/png", []byte("b")), patientID)
	assert.NoError(t, err)

	assert.NotEqual(t, a.StoredName, b.StoredName)
}

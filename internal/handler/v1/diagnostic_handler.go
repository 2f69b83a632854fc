package v1

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/diagnostic-service/internal/domain"
	"github.com/clinicore/diagnostic-service/internal/domain/diagnostic"
	"github.com/clinicore/diagnostic-service/internal/service"
	"github.com/clinicore/diagnostic-service/internal/upload"
	"github.com/clinicore/diagnostic-service/pkg/metrics"
)

// DiagnosticAPI is the service surface the handlers need.
type DiagnosticAPI interface {
	CreateDiagnostic(ctx context.Context, cmd *diagnostic.CreateDiagnosticCommand, stage *upload.Stage, ip string) (*diagnostic.Diagnostic, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, claims *domain.Claims, ip string) ([]*diagnostic.Diagnostic, error)
	Delete(ctx context.Context, id uuid.UUID, claims *domain.Claims, ip string) error
	Search(ctx context.Context, q *diagnostic.SearchQuery) ([]diagnostic.SearchHit, error)
}

var _ DiagnosticAPI = (*service.DiagnosticService)(nil)

type DiagnosticHandler struct {
	svc     DiagnosticAPI
	uploads *upload.Store
	col     *metrics.Collector
	log     *zap.Logger
}

func NewDiagnosticHandler(svc DiagnosticAPI, uploads *upload.Store, col *metrics.Collector, log *zap.Logger) *DiagnosticHandler {
	return &DiagnosticHandler{svc: svc, uploads: uploads, col: col, log: log}
}

// List returns a patient's diagnostics. Zero records is an empty list.
func (h *DiagnosticHandler) List(c *gin.Context) {
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}
	claims := ClaimsFromContext(c)

	records, err := h.svc.ListByPatient(c.Request.Context(), patientID, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, records)
}

// Create accepts a multipart form with the diagnostic fields and 0..N
// "documents" file parts. Files are staged to disk before the service is
// called; any rejection or downstream failure discards the whole stage.
func (h *DiagnosticHandler) Create(c *gin.Context) {
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}
	claims := ClaimsFromContext(c)

	title := c.PostForm("title")
	if title == "" {
		respondError(c, http.StatusBadRequest, "title is required")
		return
	}

	var nextAppointment *time.Time
	if raw := c.PostForm("nextAppointment"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid nextAppointment: expected RFC3339 or YYYY-MM-DD")
			return
		}
		nextAppointment = &t
	}

	stage := h.uploads.NewStage()
	for _, fh := range documentParts(c) {
		if _, err := stage.Add(fh, patientID); err != nil {
			if n := stage.Discard(); n > 0 {
				h.col.CleanupFailuresTotal.Add(float64(n))
			}
			h.col.UploadsRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
			respondServiceError(c, err)
			return
		}
	}

	cmd := &diagnostic.CreateDiagnosticCommand{
		PatientID:       patientID,
		DoctorID:        claims.UserID,
		Title:           title,
		Description:     c.PostForm("description"),
		Symptoms:        c.PostForm("symptoms"),
		Diagnosis:       c.PostForm("diagnosis"),
		Treatment:       c.PostForm("treatment"),
		Observations:    c.PostForm("observations"),
		NextAppointment: nextAppointment,
	}

	stored := stage.Len()
	record, err := h.svc.CreateDiagnostic(c.Request.Context(), cmd, stage, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.col.DiagnosticsCreatedTotal.Inc()
	h.col.DocumentsStoredTotal.Add(float64(stored))
	respondCreated(c, record)
}

func (h *DiagnosticHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	claims := ClaimsFromContext(c)

	if err := h.svc.Delete(c.Request.Context(), id, claims, c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}

	h.col.DiagnosticsDeletedTotal.Inc()
	c.JSON(http.StatusOK, APIResponse[any]{Message: "diagnostic deleted"})
}

// Search is public: partial title match and/or a diagnosis date range.
func (h *DiagnosticHandler) Search(c *gin.Context) {
	q := &diagnostic.SearchQuery{Title: c.Query("diagnostic")}

	if raw := c.Query("dateFrom"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid dateFrom: expected RFC3339 or YYYY-MM-DD")
			return
		}
		q.DateFrom = &t
	}
	if raw := c.Query("dateTo"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid dateTo: expected RFC3339 or YYYY-MM-DD")
			return
		}
		q.DateTo = &t
	}

	hits, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{
		Message: "search completed",
		Count:   len(hits),
		Data:    hits,
	})
}

func documentParts(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File["documents"]
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, upload.ErrUnsupportedFileType):
		return "type"
	case errors.Is(err, upload.ErrFileTooLarge):
		return "size"
	case errors.Is(err, upload.ErrTooManyFiles):
		return "count"
	default:
		return "other"
	}
}

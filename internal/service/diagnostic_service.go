package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/diagnostic-service/internal/domain"
	"github.com/clinicore/diagnostic-service/internal/domain/diagnostic"
	"github.com/clinicore/diagnostic-service/internal/domain/patient"
	"github.com/clinicore/diagnostic-service/internal/upload"
	"github.com/clinicore/diagnostic-service/pkg/metrics"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type DiagnosticService struct {
	repo        diagnostic.Repository
	patientRepo patient.Repository
	userRepo    UserRepository
	auditSvc    *AuditService
	col         *metrics.Collector
	log         *zap.Logger
}

func NewDiagnosticService(repo diagnostic.Repository, patientRepo patient.Repository, userRepo UserRepository, auditSvc *AuditService, col *metrics.Collector, log *zap.Logger) *DiagnosticService {
	return &DiagnosticService{
		repo:        repo,
		patientRepo: patientRepo,
		userRepo:    userRepo,
		auditSvc:    auditSvc,
		col:         col,
		log:         log,
	}
}

// CreateDiagnostic validates the target patient and authoring doctor, then
// persists the record and its document rows in one transaction. If anything
// fails, before, inside, or after the transaction, every file the stage
// wrote to disk is removed before the error is returned.
func (s *DiagnosticService) CreateDiagnostic(ctx context.Context, cmd *diagnostic.CreateDiagnosticCommand, stage *upload.Stage, ip string) (result *diagnostic.Diagnostic, err error) {
	defer func() {
		if err != nil && stage != nil {
			if n := stage.Discard(); n > 0 {
				s.col.CleanupFailuresTotal.Add(float64(n))
			}
		}
	}()

	if err = validateCreateCommand(cmd); err != nil {
		return nil, err
	}

	p, err := s.patientRepo.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, patient.ErrPatientInactive
	}

	doctor, err := s.userRepo.GetByID(ctx, cmd.DoctorID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, diagnostic.ErrDoctorNotFound
		}
		return nil, fmt.Errorf("verifying doctor: %w", err)
	}
	if !doctor.Role.CanAuthorRecords() {
		return nil, ErrForbidden
	}

	d := &diagnostic.Diagnostic{
		PatientID:       cmd.PatientID,
		DoctorID:        cmd.DoctorID,
		Title:           strings.TrimSpace(cmd.Title),
		Description:     cmd.Description,
		Symptoms:        cmd.Symptoms,
		Diagnosis:       cmd.Diagnosis,
		Treatment:       cmd.Treatment,
		Observations:    cmd.Observations,
		NextAppointment: cmd.NextAppointment,
		DiagnosisDate:   time.Now().UTC(),
	}

	var docs []diagnostic.Document
	if stage != nil {
		for _, f := range stage.Files() {
			docs = append(docs, diagnostic.Document{
				FileName:       f.OriginalName,
				StoredFileName: f.StoredName,
				FilePath:       f.Path,
				FileType:       f.Ext,
				MimeType:       f.MimeType,
				FileSize:       f.Size,
				UploadedBy:     cmd.DoctorID,
			})
		}
	}

	result, err = s.repo.CreateWithDocuments(ctx, d, docs)
	if err != nil {
		s.log.Error("failed to create diagnostic",
			zap.String("patient_id", cmd.PatientID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("creating diagnostic: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       cmd.DoctorID,
		UserRole:     string(doctor.Role),
		Action:       "create",
		ResourceType: "diagnostic",
		ResourceID:   result.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("diagnostic created",
		zap.String("diagnostic_id", result.ID.String()),
		zap.String("patient_id", cmd.PatientID.String()),
		zap.Int("documents", len(docs)),
	)

	return result, nil
}

// ListByPatient returns the patient's diagnostics newest-first. Nurses are
// excluded from clinical histories; patient callers only see their own.
// Zero records is an empty list, not an error.
func (s *DiagnosticService) ListByPatient(ctx context.Context, patientID uuid.UUID, claims *domain.Claims, ip string) ([]*diagnostic.Diagnostic, error) {
	if claims.Role == domain.RoleNurse {
		return nil, ErrForbidden
	}
	if claims.Role == domain.RolePatient {
		if claims.PatientID == nil || *claims.PatientID != patientID {
			return nil, ErrForbidden
		}
	}

	records, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("listing diagnostics: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       claims.UserID,
		UserRole:     string(claims.Role),
		Action:       "read",
		ResourceType: "diagnostic",
		ResourceID:   patientID.String(),
		IPAddress:    ip,
	})

	return records, nil
}

// Delete hard-deletes a diagnostic and its document rows in one transaction,
// then removes the stored files from disk. File removal failures are logged
// only; the rows are already gone.
func (s *DiagnosticService) Delete(ctx context.Context, id uuid.UUID, claims *domain.Claims, ip string) error {
	if claims.Role != domain.RoleAdmin {
		return ErrForbidden
	}

	docs, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			s.col.CleanupFailuresTotal.Inc()
			s.log.Error("failed to remove stored document",
				zap.String("path", doc.FilePath),
				zap.Error(err),
			)
		}
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       claims.UserID,
		UserRole:     string(claims.Role),
		Action:       "delete",
		ResourceType: "diagnostic",
		ResourceID:   id.String(),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"documents_removed":%d}`, len(docs)),
	})

	return nil
}

// Search is the public title/date-range lookup; it returns a projection
// rather than full records.
func (s *DiagnosticService) Search(ctx context.Context, q *diagnostic.SearchQuery) ([]diagnostic.SearchHit, error) {
	if q.DateFrom != nil && q.DateTo != nil && q.DateFrom.After(*q.DateTo) {
		return nil, &ValidationError{Fields: []string{"dateFrom must not be after dateTo"}}
	}

	hits, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("searching diagnostics: %w", err)
	}
	return hits, nil
}

func validateCreateCommand(cmd *diagnostic.CreateDiagnosticCommand) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patientId is required")
	}
	if strings.TrimSpace(cmd.Title) == "" {
		errs = append(errs, "title is required")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

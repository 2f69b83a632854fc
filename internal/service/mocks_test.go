package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/clinicore/diagnostic-service/internal/domain"
	"github.com/clinicore/diagnostic-service/internal/domain/diagnostic"
	"github.com/clinicore/diagnostic-service/internal/domain/patient"
	"github.com/clinicore/diagnostic-service/pkg/metrics"
)

// The default prometheus registry panics on duplicate registration, so all
// tests in this package share one collector.
var (
	testCollector     *metrics.Collector
	testCollectorOnce sync.Once
)

func sharedCollector() *metrics.Collector {
	testCollectorOnce.Do(func() {
		testCollector = metrics.NewCollector("diagnostic_service_test")
	})
	return testCollector
}

// Compile-time checks that the mocks satisfy the repository contracts.
var (
	_ diagnostic.Repository = (*MockDiagnosticRepository)(nil)
	_ patient.Repository    = (*MockPatientRepository)(nil)
	_ UserRepository        = (*MockUserRepository)(nil)
	_ AuditRepository       = (*MockAuditRepository)(nil)
)

type MockDiagnosticRepository struct {
	CreateWithDocumentsFunc func(ctx context.Context, d *diagnostic.Diagnostic, docs []diagnostic.Document) (*diagnostic.Diagnostic, error)
	ListByPatientFunc       func(ctx context.Context, patientID uuid.UUID) ([]*diagnostic.Diagnostic, error)
	DeleteFunc              func(ctx context.Context, id uuid.UUID) ([]diagnostic.Document, error)
	SearchFunc              func(ctx context.Context, q *diagnostic.SearchQuery) ([]diagnostic.SearchHit, error)

	CreateCallCount int32
}

func (m *MockDiagnosticRepository) CreateWithDocuments(ctx context.Context, d *diagnostic.Diagnostic, docs []diagnostic.Document) (*diagnostic.Diagnostic, error) {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateWithDocumentsFunc != nil {
		return m.CreateWithDocumentsFunc(ctx, d, docs)
	}
	return nil, errors.New("CreateWithDocumentsFunc not implemented in mock")
}

func (m *MockDiagnosticRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*diagnostic.Diagnostic, error) {
	if m.ListByPatientFunc != nil {
		return m.ListByPatientFunc(ctx, patientID)
	}
	return nil, errors.New("ListByPatientFunc not implemented in mock")
}

func (m *MockDiagnosticRepository) Delete(ctx context.Context, id uuid.UUID) ([]diagnostic.Document, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil, errors.New("DeleteFunc not implemented in mock")
}

func (m *MockDiagnosticRepository) Search(ctx context.Context, q *diagnostic.SearchQuery) ([]diagnostic.SearchHit, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, q)
	}
	return nil, errors.New("SearchFunc not implemented in mock")
}

type MockPatientRepository struct {
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, errors.New("GetByIDFunc not implemented in mock")
}

type MockUserRepository struct {
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, errors.New("GetByIDFunc not implemented in mock")
}

type MockAuditRepository struct {
	CreateFunc      func(ctx context.Context, entry *domain.AuditLog) error
	CreateCallCount int32
}

func (m *MockAuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

package diagnostic

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateWithDocuments inserts the diagnostic and its document rows in a
	// single transaction and returns the record re-read with patient, doctor
	// and documents loaded. Either everything persists or nothing does.
	CreateWithDocuments(ctx context.Context, d *Diagnostic, docs []Document) (*Diagnostic, error)

	// ListByPatient returns the patient's diagnostics newest-first with
	// documents loaded. An empty slice is not an error.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Diagnostic, error)

	// Delete removes the diagnostic and its document rows in a single
	// transaction, returning the deleted document rows so stored files can
	// be unlinked. Returns ErrDiagnosticNotFound when no row exists.
	Delete(ctx context.Context, id uuid.UUID) ([]Document, error)

	Search(ctx context.Context, q *SearchQuery) ([]SearchHit, error)
}

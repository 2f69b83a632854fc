package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinicore/diagnostic-service/internal/domain/diagnostic"
)

type diagnosticRepository struct {
	db *gorm.DB
}

func NewDiagnosticRepository(db *gorm.DB) diagnostic.Repository {
	return &diagnosticRepository{db: db}
}

func (r *diagnosticRepository) CreateWithDocuments(ctx context.Context, d *diagnostic.Diagnostic, docs []diagnostic.Document) (*diagnostic.Diagnostic, error) {
	var created *diagnostic.Diagnostic

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			return err
		}

		if len(docs) > 0 {
			for i := range docs {
				docs[i].DiagnosticID = d.ID
			}
			// Single bulk insert; all document rows commit or none do.
			if err := tx.Create(&docs).Error; err != nil {
				return err
			}
		}

		var full diagnostic.Diagnostic
		if err := tx.
			Preload("Documents").
			Preload("Patient").
			Preload("Doctor").
			First(&full, "id = ?", d.ID).Error; err != nil {
			return err
		}
		created = &full
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *diagnosticRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*diagnostic.Diagnostic, error) {
	records := make([]*diagnostic.Diagnostic, 0)
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Preload("Documents").
		Preload("Doctor").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *diagnosticRepository) Delete(ctx context.Context, id uuid.UUID) ([]diagnostic.Document, error) {
	var docs []diagnostic.Document

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("diagnostic_id = ?", id).Find(&docs).Error; err != nil {
			return err
		}

		res := tx.Delete(&diagnostic.Diagnostic{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return diagnostic.ErrDiagnosticNotFound
		}

		if len(docs) > 0 {
			if err := tx.Where("diagnostic_id = ?", id).Delete(&diagnostic.Document{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

func (r *diagnosticRepository) Search(ctx context.Context, q *diagnostic.SearchQuery) ([]diagnostic.SearchHit, error) {
	query := r.db.WithContext(ctx).Model(&diagnostic.Diagnostic{})

	if q.Title != "" {
		query = query.Where("title ILIKE ?", "%"+q.Title+"%")
	}
	if q.DateFrom != nil {
		query = query.Where("diagnosis_date >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		query = query.Where("diagnosis_date <= ?", *q.DateTo)
	}

	hits := make([]diagnostic.SearchHit, 0)
	err := query.
		Select("id", "title", "diagnosis_date", "patient_id").
		Order("diagnosis_date DESC").
		Scan(&hits).Error
	if err != nil {
		return nil, err
	}
	return hits, nil
}

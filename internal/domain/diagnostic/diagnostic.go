package diagnostic

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/diagnostic-service/internal/domain"
	"github.com/clinicore/diagnostic-service/internal/domain/patient"
)

// Once created, diagnostics cannot be modified; the only mutation is an
// admin hard delete.
type Diagnostic struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	DoctorID  uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index"`

	Title        string `gorm:"column:title;type:varchar(255);not null"`
	Description  string `gorm:"column:description;type:text"`
	Symptoms     string `gorm:"column:symptoms;type:text"`
	Diagnosis    string `gorm:"column:diagnosis;type:text"`
	Treatment    string `gorm:"column:treatment;type:text"`
	Observations string `gorm:"column:observations;type:text"`

	NextAppointment *time.Time `gorm:"column:next_appointment"`
	DiagnosisDate   time.Time  `gorm:"column:diagnosis_date;not null;index"`

	Patient *patient.Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *domain.User     `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`

	Documents []Document `gorm:"foreignKey:DiagnosticID"`
}

func (Diagnostic) TableName() string {
	return "clinical.diagnostics"
}

// Document is a file attached to exactly one diagnostic. Rows are created
// only as part of diagnostic creation, never independently.
type Document struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	DiagnosticID uuid.UUID `gorm:"column:diagnostic_id;type:uuid;not null;index"`

	FileName       string `gorm:"column:file_name;type:varchar(255);not null"`
	StoredFileName string `gorm:"column:stored_file_name;type:varchar(255);not null"`
	FilePath       string `gorm:"column:file_path;type:text;not null"`
	FileType       string `gorm:"column:file_type;type:varchar(10);not null"`
	MimeType       string `gorm:"column:mime_type;type:varchar(100);not null"`
	FileSize       int64  `gorm:"column:file_size;not null"`

	UploadedBy uuid.UUID `gorm:"column:uploaded_by;type:uuid;not null"`
}

func (Document) TableName() string {
	return "clinical.diagnostic_documents"
}

type CreateDiagnosticCommand struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	Title           string
	Description     string
	Symptoms        string
	Diagnosis       string
	Treatment       string
	Observations    string
	NextAppointment *time.Time
}

// SearchQuery filters diagnostics by partial title and/or diagnosis date range.
type SearchQuery struct {
	Title    string
	DateFrom *time.Time
	DateTo   *time.Time
}

// SearchHit is the projected subset returned by the public search endpoint.
type SearchHit struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	DiagnosisDate time.Time `json:"diagnosisDate"`
	PatientID     uuid.UUID `json:"patientId"`
}

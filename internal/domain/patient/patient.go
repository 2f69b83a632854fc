package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a patient record.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeceased Status = "deceased"
)

// Patient is owned by the organization service; this service reads it to
// validate diagnostic targets and seeds it for local development.
type Patient struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"` // Soft Delete

	FirstName   string    `gorm:"column:first_name;type:varchar(100);not null"`
	LastName    string    `gorm:"column:last_name;type:varchar(100);not null"`
	DateOfBirth time.Time `gorm:"column:date_of_birth;not null"`
	NationalID  string    `gorm:"column:national_id;type:varchar(50);uniqueIndex"`

	Status Status `gorm:"column:status;type:varchar(20);default:'active';index"`

	// Links the patient to their auth-service account, if one exists
	UserID *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
}

func (Patient) TableName() string {
	return "clinical.patients"
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) IsActive() bool {
	return p.Status == StatusActive && p.DeletedAt == nil
}

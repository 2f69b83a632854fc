// Seeds demo accounts and patients for local development. Not for
// production use; every account gets the same throwaway password.
package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/clinicore/diagnostic-service/internal/config"
	"github.com/clinicore/diagnostic-service/internal/domain"
	"github.com/clinicore/diagnostic-service/internal/domain/patient"
	"github.com/clinicore/diagnostic-service/pkg/database"
	"github.com/clinicore/diagnostic-service/pkg/logger"
)

const demoPassword = "changeme-dev-only"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing demo password: %w", err)
	}

	users := []domain.User{
		{Email: "admin@clinic.test", FullName: "Ada Admin", Role: domain.RoleAdmin},
		{Email: "doctor@clinic.test", FullName: "Gregory House", Role: domain.RoleDoctor, Specialization: "diagnostics"},
		{Email: "nurse@clinic.test", FullName: "Carla Espinosa", Role: domain.RoleNurse},
		{Email: "patient@clinic.test", FullName: "John Doe", Role: domain.RolePatient},
	}

	for i := range users {
		users[i].PasswordHash = string(hash)
		users[i].IsActive = true
		if err := db.Where(domain.User{Email: users[i].Email}).FirstOrCreate(&users[i]).Error; err != nil {
			return fmt.Errorf("seeding user %s: %w", users[i].Email, err)
		}
		log.Info("user seeded",
			zap.String("email", users[i].Email),
			zap.String("role", string(users[i].Role)),
		)
	}

	patients := []patient.Patient{
		{
			FirstName:   "John",
			LastName:    "Doe",
			DateOfBirth: time.Date(1984, 3, 12, 0, 0, 0, 0, time.UTC),
			NationalID:  "DEMO-0001",
			Status:      patient.StatusActive,
		},
		{
			FirstName:   "Jane",
			LastName:    "Roe",
			DateOfBirth: time.Date(1971, 11, 2, 0, 0, 0, 0, time.UTC),
			NationalID:  "DEMO-0002",
			Status:      patient.StatusInactive,
		},
	}

	for i := range patients {
		if err := db.Where(patient.Patient{NationalID: patients[i].NationalID}).FirstOrCreate(&patients[i]).Error; err != nil {
			return fmt.Errorf("seeding patient %s: %w", patients[i].NationalID, err)
		}
		log.Info("patient seeded",
			zap.String("national_id", patients[i].NationalID),
			zap.String("status", string(patients[i].Status)),
		)
	}

	// Link the demo patient account to its clinical record
	if err := linkPatientAccount(db, &users[3], &patients[0]); err != nil {
		return err
	}

	log.Info("seed completed")
	return nil
}

func linkPatientAccount(db *gorm.DB, account *domain.User, p *patient.Patient) error {
	if account.PatientID != nil && p.UserID != nil {
		return nil
	}
	if err := db.Model(account).Update("patient_id", p.ID).Error; err != nil {
		return fmt.Errorf("linking account to patient: %w", err)
	}
	if err := db.Model(p).Update("user_id", account.ID).Error; err != nil {
		return fmt.Errorf("linking patient to account: %w", err)
	}
	return nil
}

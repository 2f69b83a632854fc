package database

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clinicore/diagnostic-service/internal/config"
	"github.com/clinicore/diagnostic-service/internal/domain"
	"github.com/clinicore/diagnostic-service/internal/domain/diagnostic"
	"github.com/clinicore/diagnostic-service/internal/domain/patient"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DSN(),
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// MonitorPool publishes the open connection count until ctx is cancelled.
func MonitorPool(ctx context.Context, db *gorm.DB, gauge prometheus.Gauge, interval time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gauge.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"clinical", "auth", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.AuditLog{},
		&patient.Patient{},
		&diagnostic.Diagnostic{},
		&diagnostic.Document{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	createIndexes(db, log)

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// createIndexes is best-effort: a missing extension or insufficient
// privileges degrades query performance, not correctness.
func createIndexes(db *gorm.DB, log *zap.Logger) {
	indexes := []struct {
		name  string
		query string
	}{
		// Patient history listing: newest-first per patient
		{
			name:  "idx_diagnostics_patient_created",
			query: `CREATE INDEX IF NOT EXISTS idx_diagnostics_patient_created ON clinical.diagnostics (patient_id, created_at DESC)`,
		},
		// Public search: partial title match
		{
			name:  "idx_diagnostics_title_trgm",
			query: `CREATE INDEX IF NOT EXISTS idx_diagnostics_title_trgm ON clinical.diagnostics USING gin (title gin_trgm_ops)`,
		},
		{
			name:  "idx_diagnostics_diagnosis_date",
			query: `CREATE INDEX IF NOT EXISTS idx_diagnostics_diagnosis_date ON clinical.diagnostics (diagnosis_date)`,
		},
		{
			name:  "idx_diagnostic_documents_diagnostic",
			query: `CREATE INDEX IF NOT EXISTS idx_diagnostic_documents_diagnostic ON clinical.diagnostic_documents (diagnostic_id)`,
		},
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
		log.Warn("pg_trgm extension unavailable, title search will not use a trigram index", zap.Error(err))
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			log.Warn("index creation failed", zap.String("index", idx.name), zap.Error(err))
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/diagnostic-service/internal/config"
	v1 "github.com/clinicore/diagnostic-service/internal/handler/v1"
	"github.com/clinicore/diagnostic-service/internal/repository"
	"github.com/clinicore/diagnostic-service/internal/service"
	"github.com/clinicore/diagnostic-service/internal/upload"
	"github.com/clinicore/diagnostic-service/pkg/auth"
	"github.com/clinicore/diagnostic-service/pkg/database"
	"github.com/clinicore/diagnostic-service/pkg/logger"
	"github.com/clinicore/diagnostic-service/pkg/metrics"
	"github.com/clinicore/diagnostic-service/pkg/tracer"
)

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

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	col := metrics.NewCollector("diagnostic")
	jwtManager := auth.NewJWTManager(cfg.JWT)
	uploads := upload.NewStore(cfg.Upload, log)

	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), col, log)
	diagSvc := service.NewDiagnosticService(
		repository.NewDiagnosticRepository(db),
		repository.NewPatientRepository(db),
		repository.NewUserRepository(db),
		auditSvc,
		col,
		log,
	)

	handler := v1.NewDiagnosticHandler(diagSvc, uploads, col, log)
	router := v1.NewRouter(cfg, handler, jwtManager, col, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go database.MonitorPool(ctx, db, col.DBConnections, 15*time.Second)

	errCh := make(chan error, 1)
	go func() {
		log.Info("diagnostic service listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}

	auditSvc.Shutdown()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", zap.Error(err))
	}

	return nil
}

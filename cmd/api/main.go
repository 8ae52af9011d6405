package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/expiwt/AlphaHack/internal/config"
	"github.com/expiwt/AlphaHack/internal/decision"
	"github.com/expiwt/AlphaHack/internal/handler"
	"github.com/expiwt/AlphaHack/internal/ingest"
	"github.com/expiwt/AlphaHack/internal/integrations/cbr"
	"github.com/expiwt/AlphaHack/internal/repository"
	"github.com/expiwt/AlphaHack/internal/scheduler"
	"github.com/expiwt/AlphaHack/internal/service"
	"github.com/expiwt/AlphaHack/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	policy, err := decision.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		logger.Fatalf("Failed to load decision policy: %v", err)
	}
	engine, err := decision.NewEngine(policy)
	if err != nil {
		logger.Fatalf("Failed to create decision engine: %v", err)
	}

	// Initialize layers
	pipeline := ingest.NewPipeline(store, engine, ingest.TargetPredictor{Confidence: cfg.DefaultConfidence}, cfg.IngestWorkers, logger)
	svc := service.NewService(store, engine, pipeline, logger, cfg)
	svc.SetKeyRateSource(cbr.NewCBRClient(cfg, logger))
	if cfg.SMTPEnabled() {
		svc.SetNotifier(email.NewSender(cfg, logger))
	}
	h := handler.NewHandler(svc, logger, cfg.MaxUploadBytes)
	r := handler.NewRouter(h, cfg, logger)

	// Background jobs
	jobs := scheduler.New(logger)
	if err := jobs.Add("key_rate", cfg.KeyRateSchedule, func(ctx context.Context) error {
		_, err := svc.RefreshKeyRate(ctx)
		return err
	}); err != nil {
		logger.Fatalf("Failed to schedule jobs: %v", err)
	}
	if err := jobs.Add("redecide", cfg.RedecideSchedule, svc.RefreshDecisions); err != nil {
		logger.Fatalf("Failed to schedule jobs: %v", err)
	}
	jobs.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	jobs.Stop(ctx)
}

func openStore(cfg *config.Config, logger *logrus.Logger) (repository.Store, func(), error) {
	if cfg.Store == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := repository.NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/expiwt/AlphaHack/internal/config"
	"github.com/expiwt/AlphaHack/internal/decision"
	"github.com/expiwt/AlphaHack/internal/ingest"
	"github.com/expiwt/AlphaHack/internal/integrations/cbr"
	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/expiwt/AlphaHack/internal/repository"
	"github.com/sirupsen/logrus"
)

// UploadNotifier reports processed uploads out of band
type UploadNotifier interface {
	SendUploadReport(upload *models.Upload) error
}

// KeyRateSource fetches the current central bank key rate
type KeyRateSource interface {
	GetKeyRate(ctx context.Context) (cbr.KeyRate, error)
}

// Service handles business logic
type Service struct {
	store    repository.Store
	engine   *decision.Engine
	pipeline *ingest.Pipeline
	log      *logrus.Logger
	config   *config.Config

	notifier UploadNotifier
	rates    KeyRateSource

	rateMu        sync.RWMutex
	keyRate       *KeyRate
	keyRateMaxAge time.Duration

	now func() time.Time
}

// NewService initializes a new service
func NewService(store repository.Store, engine *decision.Engine, pipeline *ingest.Pipeline, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		store:         store,
		engine:        engine,
		pipeline:      pipeline,
		log:           log,
		config:        cfg,
		keyRateMaxAge: time.Hour,
		now:           time.Now,
	}
}

// SetNotifier enables upload reports
func (s *Service) SetNotifier(n UploadNotifier) {
	s.notifier = n
}

// SetKeyRateSource enables the key rate endpoint and dashboard field
func (s *Service) SetKeyRateSource(src KeyRateSource) {
	s.rates = src
}

// Ping checks the underlying store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

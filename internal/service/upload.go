package service

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/expiwt/AlphaHack/internal/ingest"
	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/expiwt/AlphaHack/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultUploadHistory = 50

// SeedResult reports the outcome of seeding demo clients
type SeedResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// UploadCSV ingests a CSV payload and records the upload
func (s *Service) UploadCSV(ctx context.Context, fileName, uploadedBy string, payload []byte) (*models.Upload, error) {
	if len(payload) == 0 {
		return nil, invalid("file", "must not be empty")
	}

	res, err := s.pipeline.Ingest(ctx, bytes.NewReader(payload))
	if errors.Is(err, ingest.ErrInvalidPayload) {
		return nil, &ValidationError{Field: "file", Reason: err.Error()}
	}
	if err != nil {
		return nil, err
	}

	upload := &models.Upload{
		ID:           uuid.NewString(),
		FileName:     fileName,
		Checksum:     utils.GenerateHMAC(payload, s.config.HMACSecret),
		UploadedBy:   uploadedBy,
		Processed:    res.Processed,
		RejectedRows: res.Rejected,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if err := s.store.SaveUpload(ctx, upload); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"upload_id": upload.ID,
		"file":      upload.FileName,
		"processed": upload.Processed,
		"rejected":  len(upload.RejectedRows),
	}).Info("Upload processed")

	if s.notifier != nil {
		if err := s.notifier.SendUploadReport(upload); err != nil {
			s.log.WithField("upload_id", upload.ID).Warnf("Upload report not sent: %v", err)
		}
	}
	return upload, nil
}

// ListUploads returns the most recent uploads
func (s *Service) ListUploads(ctx context.Context) ([]models.Upload, error) {
	uploads, err := s.store.ListUploads(ctx, defaultUploadHistory)
	if err != nil {
		return nil, err
	}
	if uploads == nil {
		uploads = []models.Upload{}
	}
	return uploads, nil
}

// Seed loads demo clients into an empty store
func (s *Service) Seed(ctx context.Context) (SeedResult, error) {
	count, err := s.store.CountClients(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	if count > 0 {
		return SeedResult{Message: "data already exists", Count: count}, nil
	}

	res, err := s.pipeline.IngestRecords(ctx, demoClients())
	if err != nil {
		return SeedResult{}, err
	}
	s.log.Infof("Seeded %d demo clients", res.Processed)
	return SeedResult{Message: "demo data created", Count: res.Processed}, nil
}

func demoClients() []models.ClientRecord {
	male, female := models.GenderMale, models.GenderFemale
	return []models.ClientRecord{
		{
			ID: "cli_001", Age: models.Int(34), Gender: &male,
			City: models.String("Moscow"), Region: models.String("Moscow"),
			IncomeReal: models.Float(185000), Target: models.Float(178500),
			AvgCurCrTurn: models.Float(142000), OvrdSum: models.Float(12000), LoanCurAmt: models.Float(250000),
		},
		{
			ID: "cli_002", Age: models.Int(27), Gender: &female,
			City: models.String("Saint Petersburg"), Region: models.String("Leningrad Oblast"),
			IncomeReal: models.Float(72000), Target: models.Float(80500),
			AvgCurCrTurn: models.Float(15000), OvrdSum: models.Float(30000), LoanCurAmt: models.Float(90000),
		},
		{
			ID: "cli_003", Age: models.Int(45), Gender: &male,
			City: models.String("Kazan"), Region: models.String("Tatarstan"),
			IncomeReal: models.Float(260000), Target: models.Float(241000),
			AvgCurCrTurn: models.Float(210000), OvrdSum: models.Float(0), LoanCurAmt: models.Float(400000),
		},
		{
			ID: "cli_004", Age: models.Int(52), Gender: &female,
			City: models.String("Novosibirsk"), Region: models.String("Novosibirsk Oblast"),
			IncomeReal: models.Float(58000), Target: models.Float(61000),
			AvgCurCrTurn: models.Float(40000), OvrdSum: models.Float(52000), LoanCurAmt: models.Float(150000),
		},
		{
			ID: "cli_005", Age: models.Int(31), Gender: &male,
			City: models.String("Yekaterinburg"), Region: models.String("Sverdlovsk Oblast"),
			Target: models.Float(124000),
			AvgCurCrTurn: models.Float(98000), LoanCurAmt: models.Float(120000),
		},
	}
}

package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/expiwt/AlphaHack/internal/config"
	"github.com/expiwt/AlphaHack/internal/decision"
	"github.com/expiwt/AlphaHack/internal/ingest"
	"github.com/expiwt/AlphaHack/internal/integrations/cbr"
	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/expiwt/AlphaHack/internal/repository"
	"github.com/expiwt/AlphaHack/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		HMACSecret:        "hmac-secret",
		ListDefaultLimit:  2,
		ListMaxLimit:      3,
		IngestWorkers:     4,
		ModelVersion:      "v1.0",
		DefaultConfidence: 0.82,
	}
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *repository.MemoryRepository) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := repository.NewMemoryRepository()
	engine, err := decision.NewEngine(decision.DefaultPolicy())
	require.NoError(t, err)
	pipeline := ingest.NewPipeline(store, engine, ingest.TargetPredictor{Confidence: cfg.DefaultConfidence}, cfg.IngestWorkers, log)
	s := NewService(store, engine, pipeline, log, cfg)
	s.now = func() time.Time { return fixedNow }
	return s, store
}

func upsert(t *testing.T, store repository.ClientStore, recs ...models.ClientRecord) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, store.UpsertClient(context.Background(), rec))
	}
}

func TestRegisterAndLogin(t *testing.T) {
	cfg := testConfig()
	s, _ := newTestService(t, cfg)
	s.now = time.Now
	ctx := context.Background()

	token, err := s.Register(ctx, "Analyst@Bank.ru", "secret1", "Risk Analyst")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	token, err = s.Login(ctx, "analyst@bank.ru", "secret1")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "analyst@bank.ru", claims.Subject)
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := s.Register(ctx, "not-an-email", "secret1", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Register(ctx, "a@b.ru", "12345", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)

	_, err = s.Register(ctx, "a@b.ru", "123456", "")
	require.NoError(t, err)
	_, err = s.Register(ctx, "A@B.ru", "123456", "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoginInvalidCredentials(t *testing.T) {
	s, _ := newTestService(t, testConfig())
	ctx := context.Background()
	_, err := s.Register(ctx, "a@b.ru", "123456", "")
	require.NoError(t, err)

	_, err = s.Login(ctx, "a@b.ru", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.Login(ctx, "nobody@b.ru", "123456")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetClientNotFound(t *testing.T) {
	s, _ := newTestService(t, testConfig())
	rec, err := s.GetClient(context.Background(), "cli_missing")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "client not found")
}

func TestListClients(t *testing.T) {
	s, store := newTestService(t, testConfig())
	ctx := context.Background()
	low, high := models.RiskLevelLow, models.RiskLevelHigh
	upsert(t, store,
		models.ClientRecord{ID: "a", IncomeValue: models.Float(10), RiskLevel: &low},
		models.ClientRecord{ID: "b", IncomeValue: models.Float(30), RiskLevel: &high},
		models.ClientRecord{ID: "c", IncomeValue: models.Float(20), RiskLevel: &low},
		models.ClientRecord{ID: "d", RiskLevel: &low},
	)

	t.Run("defaults to income descending with default limit", func(t *testing.T) {
		res, err := s.ListClients(ctx, ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Total)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "b", res.Items[0].ID)
		assert.Equal(t, "c", res.Items[1].ID)
	})

	t.Run("limit is clamped to the maximum", func(t *testing.T) {
		res, err := s.ListClients(ctx, ListParams{Limit: "100"})
		require.NoError(t, err)
		assert.Len(t, res.Items, 3)
	})

	t.Run("camelCase sort with filter and offset", func(t *testing.T) {
		res, err := s.ListClients(ctx, ListParams{Sort: "incomeValue", Order: "asc", RiskLevel: "low", Offset: "1", Limit: "3"})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "c", res.Items[0].ID)
		assert.Equal(t, "d", res.Items[1].ID)
	})

	t.Run("empty store yields empty items", func(t *testing.T) {
		empty, _ := newTestService(t, testConfig())
		res, err := empty.ListClients(ctx, ListParams{})
		require.NoError(t, err)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
	})

	badParams := []struct {
		name  string
		p     ListParams
		field string
	}{
		{"unknown sort", ListParams{Sort: "favourite_colour"}, "sort"},
		{"bad order", ListParams{Order: "sideways"}, "order"},
		{"zero limit", ListParams{Limit: "0"}, "limit"},
		{"text limit", ListParams{Limit: "ten"}, "limit"},
		{"negative offset", ListParams{Offset: "-1"}, "offset"},
		{"bad risk level", ListParams{RiskLevel: "EXTREME"}, "risk_level"},
	}
	for _, tc := range badParams {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.ListClients(ctx, tc.p)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestGetPrediction(t *testing.T) {
	s, store := newTestService(t, testConfig())
	upsert(t, store,
		models.ClientRecord{ID: "p1", IncomeReal: models.Float(100000), IncomePredicted: models.Float(90000), Confidence: models.Float(0.82)},
		models.ClientRecord{ID: "p2", IncomePredicted: models.Float(90000)},
		models.ClientRecord{ID: "p4", IncomeReal: models.Float(1e-300), IncomePredicted: models.Float(1e10)},
	)

	p, err := s.GetPrediction(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, p.Error)
	require.NotNil(t, p.ErrorPercent)
	assert.Equal(t, 10000.0, *p.Error)
	assert.Equal(t, 10.0, *p.ErrorPercent)
	assert.Equal(t, "v1.0", p.ModelVersion)

	p, err = s.GetPrediction(context.Background(), "p2")
	require.NoError(t, err)
	assert.Nil(t, p.ActualIncome)
	assert.Nil(t, p.Error)
	assert.Nil(t, p.ErrorPercent)

	p, err = s.GetPrediction(context.Background(), "p4")
	require.NoError(t, err)
	require.NotNil(t, p.Error)
	assert.Nil(t, p.ErrorPercent, "overflowing percentage is left unknown")

	_, err = s.GetPrediction(context.Background(), "p3")
	assert.ErrorIs(t, err, ErrNotFound)
}

type stubNotifier struct {
	sent []*models.Upload
	err  error
}

func (n *stubNotifier) SendUploadReport(upload *models.Upload) error {
	n.sent = append(n.sent, upload)
	return n.err
}

func TestUploadCSV(t *testing.T) {
	cfg := testConfig()
	s, _ := newTestService(t, cfg)
	notifier := &stubNotifier{err: errors.New("smtp down")}
	s.SetNotifier(notifier)

	payload := []byte("id,income_value,ovrd_sum,loan_cur_amt\n" +
		"cli_1,50000,10000,40000\n" +
		",60000,0,0\n" +
		"cli_3,120000,0,100000\n")
	upload, err := s.UploadCSV(context.Background(), "clients.csv", "a@b.ru", payload)
	require.NoError(t, err)

	assert.Equal(t, 2, upload.Processed)
	assert.Equal(t, []models.RejectedRow{{Row: 2, Reason: "missing id"}}, upload.RejectedRows)
	assert.Equal(t, utils.GenerateHMAC(payload, cfg.HMACSecret), upload.Checksum)
	assert.NotEmpty(t, upload.ID)
	assert.Equal(t, fixedNow, upload.CreatedAt)
	require.Len(t, notifier.sent, 1, "notifier failure must not fail the upload")

	rec, err := s.GetClient(context.Background(), "cli_1")
	require.NoError(t, err)
	require.NotNil(t, rec.HDBIncomeRatio)
	assert.InDelta(t, 0.2, *rec.HDBIncomeRatio, 1e-9)
	assert.Equal(t, models.RecommendationApprove, rec.Recommendation)

	uploads, err := s.ListUploads(context.Background())
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, upload.ID, uploads[0].ID)
}

func TestUploadCSVInvalidPayload(t *testing.T) {
	s, _ := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := s.UploadCSV(ctx, "empty.csv", "a@b.ru", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.UploadCSV(ctx, "noid.csv", "a@b.ru", []byte("name,income_value\nx,1\n"))
	assert.ErrorIs(t, err, ErrValidation)

	uploads, err := s.ListUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestSeed(t *testing.T) {
	s, _ := newTestService(t, testConfig())
	ctx := context.Background()

	res, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)

	res, err = s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Message: "data already exists", Count: 5}, res)
}

func TestDashboard(t *testing.T) {
	s, store := newTestService(t, testConfig())
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		d, err := s.Dashboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, d.Stats.TotalClients)
		assert.Equal(t, 0.0, d.CreditDecisions.ApprovalRate)
		assert.Len(t, d.IncomeDistribution, len(models.IncomeCategories))
		assert.Equal(t, defaultMetrics, d.Stats.Metrics)
		assert.Nil(t, d.Stats.KeyRate)
	})

	upsert(t, store,
		models.ClientRecord{ID: "1", IncomeValue: models.Float(50000), IncomeCategory: models.IncomeCategoryLow,
			IncomePredicted: models.Float(1), Confidence: models.Float(0.8), Recommendation: models.RecommendationApprove},
		models.ClientRecord{ID: "2", IncomeValue: models.Float(150000), IncomeCategory: models.IncomeCategoryMiddle,
			Confidence: models.Float(0.85), Recommendation: models.RecommendationApprove},
		models.ClientRecord{ID: "3", IncomeValue: models.Float(250000), IncomeCategory: models.IncomeCategoryHigh,
			Recommendation: models.RecommendationReject},
	)

	t.Run("populated store", func(t *testing.T) {
		d, err := s.Dashboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, d.Stats.TotalClients)
		assert.Equal(t, 1, d.Stats.TotalPredictions)
		assert.Equal(t, 0.83, d.Stats.AvgConfidence)
		assert.Equal(t, fixedNow, d.Stats.LastUpdate)
		assert.Equal(t, models.CreditDecisions{Approved: 2, Rejected: 1, ApprovalRate: 66.7}, d.CreditDecisions)

		sum := 0.0
		for _, b := range d.IncomeDistribution {
			sum += b.Percentage
		}
		assert.InDelta(t, 100.0, sum, 1e-9)
		assert.Equal(t, 33.4, d.IncomeDistribution[0].Percentage)
		assert.Equal(t, 33.3, d.IncomeDistribution[1].Percentage)
		assert.Equal(t, models.IncomeCategoryUnknown, d.IncomeDistribution[3].Category)
		assert.Equal(t, 0, d.IncomeDistribution[3].Count)
	})
}

func TestApprovalRate(t *testing.T) {
	assert.Equal(t, 0.0, approvalRate(0, 0))
	assert.Equal(t, 100.0, approvalRate(4, 0))
	assert.Equal(t, 0.0, approvalRate(0, 3))
	assert.Equal(t, 66.7, approvalRate(2, 1))
}

func TestDistributionSumsToHundred(t *testing.T) {
	cases := []map[models.IncomeCategory]int{
		{models.IncomeCategoryLow: 1},
		{models.IncomeCategoryLow: 1, models.IncomeCategoryMiddle: 1, models.IncomeCategoryHigh: 1},
		{models.IncomeCategoryLow: 2, models.IncomeCategoryMiddle: 2, models.IncomeCategoryHigh: 2, models.IncomeCategoryUnknown: 1},
		{models.IncomeCategoryLow: 997, models.IncomeCategoryMiddle: 1, models.IncomeCategoryHigh: 1, models.IncomeCategoryUnknown: 1},
	}
	for _, counts := range cases {
		total := 0
		for _, n := range counts {
			total += n
		}
		tenths := 0
		for _, b := range distribution(counts, total) {
			tenths += int(b.Percentage*10 + 0.5)
			assert.Equal(t, counts[b.Category], b.Count)
		}
		assert.Equal(t, 1000, tenths)
	}
}

func TestDashboardStoredMetrics(t *testing.T) {
	cfg := testConfig()
	s, _ := newTestService(t, cfg)
	s.store = repository.NewMemoryRepository(
		models.ModelMetric{Name: "WMAE", Dataset: "train", Value: 0.1, ModelVersion: "v1.0"},
		models.ModelMetric{Name: "WMAE", Dataset: "test", Value: 0.2, ModelVersion: "v1.0"},
		models.ModelMetric{Name: "MAE", Dataset: "test", Value: 7000, ModelVersion: "v1.0"},
		models.ModelMetric{Name: "MAE", Dataset: "test", Value: 9999, ModelVersion: "v0.9"},
	)

	metrics, err := s.modelMetrics(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.MetricValue{
		{MetricName: "WMAE", TrainValue: 0.1, TestValue: 0.2},
		{MetricName: "MAE", TestValue: 7000, Unit: "₽"},
	}, metrics)
}

func TestRefreshDecisions(t *testing.T) {
	cfg := testConfig()
	s, store := newTestService(t, cfg)
	ctx := context.Background()

	upsert(t, store, s.engine.Apply(models.ClientRecord{
		ID: "r1", IncomeValue: models.Float(100000), OvrdSum: models.Float(40000),
	}))
	rec, err := s.GetClient(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, rec.RiskLevel)
	assert.Equal(t, models.RiskLevelMedium, *rec.RiskLevel)

	require.NoError(t, s.RefreshDecisions(ctx), "default policy is not a change")

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("low_risk_ratio: 0.5\nhigh_risk_ratio: 0.8\n"), 0o600))
	cfg.PolicyFile = path

	require.NoError(t, s.RefreshDecisions(ctx))
	assert.Equal(t, 0.5, s.engine.Policy().LowRiskRatio)

	rec, err = s.GetClient(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, rec.RiskLevel)
	assert.Equal(t, models.RiskLevelLow, *rec.RiskLevel)
	assert.Equal(t, models.IncomeCategoryMiddle, rec.IncomeCategory)

	changed, err := s.ReloadPolicy()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte("low_risk_ratio: 0.9\nhigh_risk_ratio: 0.8\n"), 0o600))
	assert.Error(t, s.RefreshDecisions(ctx))
	assert.Equal(t, 0.5, s.engine.Policy().LowRiskRatio)
}

type stubRates struct {
	rate  cbr.KeyRate
	err   error
	calls int
}

func (r *stubRates) GetKeyRate(ctx context.Context) (cbr.KeyRate, error) {
	r.calls++
	return r.rate, r.err
}

func TestKeyRate(t *testing.T) {
	s, _ := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := s.GetKeyRate(ctx)
	assert.ErrorIs(t, err, ErrKeyRateUnavailable)

	rates := &stubRates{rate: cbr.KeyRate{
		EffectiveDate: time.Date(2025, 11, 28, 0, 0, 0, 0, time.FixedZone("MSK", 3*60*60)),
		CentralRate:   16.5,
		LendingRate:   21.5,
	}}
	s.SetKeyRateSource(rates)

	kr, err := s.GetKeyRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, KeyRate{Rate: 21.5, CentralRate: 16.5, EffectiveDate: "2025-11-28", FetchedAt: fixedNow}, kr)

	_, err = s.GetKeyRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rates.calls, "fresh rate is served from cache")

	d, err := s.Dashboard(ctx)
	require.NoError(t, err)
	require.NotNil(t, d.Stats.KeyRate)
	assert.Equal(t, 21.5, *d.Stats.KeyRate)

	s.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	rates.err = errors.New("cbr down")
	_, err = s.GetKeyRate(ctx)
	assert.Error(t, err)
	assert.Equal(t, 2, rates.calls)
}

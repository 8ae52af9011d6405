package service

import (
	"context"
	"sort"
	"strings"

	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/shopspring/decimal"
)

var defaultMetrics = []models.MetricValue{
	{MetricName: "WMAE", TrainValue: 0.1234, TestValue: 0.1456, Unit: ""},
	{MetricName: "MAE", TrainValue: 5234.50, TestValue: 6123.75, Unit: "₽"},
}

// Dashboard aggregates statistics over every stored client in one pass
func (s *Service) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	counts := make(map[models.IncomeCategory]int, len(models.IncomeCategories))
	var (
		total, predicted, confident int
		confidenceSum               float64
		decisions                   models.CreditDecisions
	)

	err := s.store.ScanClients(ctx, func(rec models.ClientRecord) error {
		total++
		category := rec.IncomeCategory
		if category == "" {
			category = models.CategorizeIncome(rec.IncomeValue)
		}
		counts[category]++
		if rec.IncomePredicted != nil {
			predicted++
		}
		if rec.Confidence != nil {
			confident++
			confidenceSum += *rec.Confidence
		}
		switch rec.Recommendation {
		case models.RecommendationApprove:
			decisions.Approved++
		case models.RecommendationReject:
			decisions.Rejected++
		default:
			decisions.Review++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	decisions.ApprovalRate = approvalRate(decisions.Approved, decisions.Rejected)

	metrics, err := s.modelMetrics(ctx)
	if err != nil {
		return nil, err
	}

	stats := models.Stats{
		TotalPredictions: predicted,
		TotalClients:     total,
		ModelVersion:     s.config.ModelVersion,
		LastUpdate:       s.now().UTC(),
		KeyRate:          s.cachedKeyRate(),
		Metrics:          metrics,
	}
	if confident > 0 {
		stats.AvgConfidence = round(confidenceSum/float64(confident), 2)
	}

	return &models.DashboardStats{
		Stats:              stats,
		IncomeDistribution: distribution(counts, total),
		CreditDecisions:    decisions,
	}, nil
}

// approvalRate excludes REVIEW records and is 0 when nothing is decided
func approvalRate(approved, rejected int) float64 {
	decided := approved + rejected
	if decided == 0 {
		return 0
	}
	rate, _ := decimal.NewFromInt(int64(approved)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(decided)), 1).
		Float64()
	return rate
}

// distribution assigns one-decimal percentages by largest remainder so
// that a non-empty distribution always sums to exactly 100.0
func distribution(counts map[models.IncomeCategory]int, total int) []models.IncomeDistribution {
	out := make([]models.IncomeDistribution, len(models.IncomeCategories))
	if total == 0 {
		for i, c := range models.IncomeCategories {
			out[i] = models.IncomeDistribution{Category: c}
		}
		return out
	}

	type share struct {
		idx       int
		tenths    int
		remainder int
	}
	shares := make([]share, len(models.IncomeCategories))
	assigned := 0
	for i, c := range models.IncomeCategories {
		scaled := counts[c] * 1000
		shares[i] = share{idx: i, tenths: scaled / total, remainder: scaled % total}
		assigned += shares[i].tenths
	}

	byRemainder := make([]share, len(shares))
	copy(byRemainder, shares)
	sort.SliceStable(byRemainder, func(a, b int) bool {
		return byRemainder[a].remainder > byRemainder[b].remainder
	})
	for i := 0; assigned < 1000; i++ {
		shares[byRemainder[i%len(byRemainder)].idx].tenths++
		assigned++
	}

	for i, c := range models.IncomeCategories {
		pct, _ := decimal.New(int64(shares[i].tenths), -1).Float64()
		out[i] = models.IncomeDistribution{Category: c, Count: counts[c], Percentage: pct}
	}
	return out
}

// modelMetrics pairs stored train/test values per metric, falling back to
// the published figures of the current model
func (s *Service) modelMetrics(ctx context.Context) ([]models.MetricValue, error) {
	rows, err := s.store.ListModelMetrics(ctx, s.config.ModelVersion)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		out := make([]models.MetricValue, len(defaultMetrics))
		copy(out, defaultMetrics)
		return out, nil
	}

	byName := make(map[string]*models.MetricValue)
	var names []string
	for _, row := range rows {
		mv, ok := byName[row.Name]
		if !ok {
			mv = &models.MetricValue{MetricName: row.Name, Unit: metricUnit(row.Name)}
			byName[row.Name] = mv
			names = append(names, row.Name)
		}
		switch row.Dataset {
		case "train":
			mv.TrainValue = row.Value
		case "test":
			mv.TestValue = row.Value
		}
	}

	out := make([]models.MetricValue, 0, len(names))
	for _, name := range names {
		out = append(out, *byName[name])
	}
	return out, nil
}

func metricUnit(name string) string {
	upper := strings.ToUpper(name)
	if strings.Contains(upper, "MAE") && !strings.HasPrefix(upper, "W") {
		return "₽"
	}
	return ""
}

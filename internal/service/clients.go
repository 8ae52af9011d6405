package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/expiwt/AlphaHack/internal/repository"
	"github.com/shopspring/decimal"
)

// ListParams are the raw query parameters of a client listing
type ListParams struct {
	Sort      string
	Order     string
	Limit     string
	Offset    string
	RiskLevel string
}

// GetClient returns a single client by id
func (s *Service) GetClient(ctx context.Context, id string) (*models.ClientRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("id", "must not be empty")
	}
	rec, err := s.store.GetClient(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("client not found")
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListClients validates the listing parameters and returns one page of clients
func (s *Service) ListClients(ctx context.Context, p ListParams) (repository.ListResult, error) {
	q, err := s.listQuery(p)
	if err != nil {
		return repository.ListResult{}, err
	}
	res, err := s.store.ListClients(ctx, q)
	if err != nil {
		return repository.ListResult{}, err
	}
	if res.Items == nil {
		res.Items = []models.ClientRecord{}
	}
	return res, nil
}

func (s *Service) listQuery(p ListParams) (repository.ListQuery, error) {
	q := repository.ListQuery{SortBy: models.FieldIncomeValue, Limit: s.config.ListDefaultLimit}

	if strings.TrimSpace(p.Sort) != "" {
		field, ok := repository.SortableField(p.Sort)
		if !ok {
			return q, invalid("sort", "unsupported sort field %q", p.Sort)
		}
		q.SortBy = field
	}

	order, err := repository.ParseSortOrder(p.Order)
	if err != nil {
		return q, invalid("order", "must be asc or desc")
	}
	q.Order = order

	if strings.TrimSpace(p.Limit) != "" {
		limit, err := strconv.Atoi(strings.TrimSpace(p.Limit))
		if err != nil || limit <= 0 {
			return q, invalid("limit", "must be a positive integer")
		}
		q.Limit = min(limit, s.config.ListMaxLimit)
	}

	if strings.TrimSpace(p.Offset) != "" {
		offset, err := strconv.Atoi(strings.TrimSpace(p.Offset))
		if err != nil || offset < 0 {
			return q, invalid("offset", "must be a non-negative integer")
		}
		q.Offset = offset
	}

	if strings.TrimSpace(p.RiskLevel) != "" {
		level, ok := models.ParseRiskLevel(p.RiskLevel)
		if !ok {
			return q, invalid("risk_level", "must be one of LOW, MEDIUM, HIGH")
		}
		q.RiskLevel = &level
	}
	return q, nil
}

// GetPrediction compares the predicted income of a client with the actual one
func (s *Service) GetPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	rec, err := s.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	actual := rec.IncomeReal
	if actual == nil {
		actual = rec.IncomeValue
	}
	p := &models.Prediction{
		ClientID:        rec.ID,
		PredictedIncome: rec.IncomePredicted,
		ActualIncome:    actual,
		Confidence:      rec.Confidence,
		IncomeCategory:  rec.IncomeCategory,
		ModelVersion:    s.config.ModelVersion,
	}
	if rec.IncomePredicted != nil && actual != nil {
		diff := math.Abs(*rec.IncomePredicted - *actual)
		p.Error = models.Float(round(diff, 2))
		if pct := diff / *actual * 100; *actual > 0 && !math.IsInf(pct, 0) {
			p.ErrorPercent = models.Float(round(pct, 2))
		}
	}
	return p, nil
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrKeyRateUnavailable is returned when no key rate source is configured
var ErrKeyRateUnavailable = errors.New("key rate unavailable")

// KeyRate is the lending rate offered on top of the central bank key rate
type KeyRate struct {
	Rate          float64   `json:"key_rate"`
	CentralRate   float64   `json:"central_rate"`
	EffectiveDate string    `json:"effective_date"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// RefreshKeyRate fetches the key rate and caches it
func (s *Service) RefreshKeyRate(ctx context.Context) (KeyRate, error) {
	if s.rates == nil {
		return KeyRate{}, ErrKeyRateUnavailable
	}
	src, err := s.rates.GetKeyRate(ctx)
	if err != nil {
		return KeyRate{}, fmt.Errorf("failed to refresh key rate: %w", err)
	}
	kr := KeyRate{
		Rate:          src.LendingRate,
		CentralRate:   src.CentralRate,
		EffectiveDate: src.EffectiveDate.Format("2006-01-02"),
		FetchedAt:     s.now().UTC(),
	}

	s.rateMu.Lock()
	s.keyRate = &kr
	s.rateMu.Unlock()

	s.log.Infof("Key rate refreshed: %.2f effective %s", kr.Rate, kr.EffectiveDate)
	return kr, nil
}

// GetKeyRate returns the cached key rate, fetching it when missing or stale
func (s *Service) GetKeyRate(ctx context.Context) (KeyRate, error) {
	s.rateMu.RLock()
	cached := s.keyRate
	s.rateMu.RUnlock()

	if cached != nil && s.now().Sub(cached.FetchedAt) < s.keyRateMaxAge {
		return *cached, nil
	}
	return s.RefreshKeyRate(ctx)
}

func (s *Service) cachedKeyRate() *float64 {
	s.rateMu.RLock()
	defer s.rateMu.RUnlock()
	if s.keyRate == nil {
		return nil
	}
	rate := s.keyRate.Rate
	return &rate
}

package service

import (
	"context"
	"fmt"

	"github.com/expiwt/AlphaHack/internal/decision"
	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/sirupsen/logrus"
)

// ReloadPolicy reads the policy file and installs it when it differs from
// the active one. It reports whether the policy changed.
func (s *Service) ReloadPolicy() (bool, error) {
	p, err := decision.LoadPolicy(s.config.PolicyFile)
	if err != nil {
		return false, err
	}
	if p == s.engine.Policy() {
		return false, nil
	}
	if err := s.engine.SetPolicy(p); err != nil {
		return false, err
	}
	s.log.WithFields(logrus.Fields{
		"low_risk_ratio":  p.LowRiskRatio,
		"high_risk_ratio": p.HighRiskRatio,
	}).Info("Decision policy reloaded")
	return true, nil
}

// Redecide recomputes derived fields of every stored client under the
// active policy and returns the number of updated records
func (s *Service) Redecide(ctx context.Context) (int, error) {
	var ids []string
	err := s.store.ScanClients(ctx, func(rec models.ClientRecord) error {
		ids = append(ids, rec.ID)
		return nil
	})
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		err := s.store.UpdateClient(ctx, id, func(rec models.ClientRecord) models.ClientRecord {
			rec.IncomeCategory = models.CategorizeIncome(rec.IncomeValue)
			return s.engine.Apply(rec)
		})
		if err != nil {
			return updated, fmt.Errorf("failed to redecide client %s: %w", id, err)
		}
		updated++
	}
	s.log.Infof("Redecided %d clients", updated)
	return updated, nil
}

// RefreshDecisions reloads the policy and, when it changed, redecides every client
func (s *Service) RefreshDecisions(ctx context.Context) error {
	changed, err := s.ReloadPolicy()
	if err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	if !changed {
		return nil
	}
	_, err = s.Redecide(ctx)
	return err
}

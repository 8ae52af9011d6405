package decision

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunable thresholds of the decision engine
type Policy struct {
	// LowRiskRatio is the debt ratio below which a client is LOW risk
	LowRiskRatio float64 `yaml:"low_risk_ratio"`
	// HighRiskRatio is the debt ratio from which a client is HIGH risk
	HighRiskRatio float64 `yaml:"high_risk_ratio"`
	// OverdueIncomeShare marks overdue amounts above this share of income as HIGH risk
	OverdueIncomeShare float64 `yaml:"overdue_income_share"`
	// LoanIncomeMultiple bounds the affordable loan amount as a multiple of income
	LoanIncomeMultiple float64 `yaml:"loan_income_multiple"`
	// LowTurnoverShare raises LOW to MEDIUM when turnover is below this share of income
	LowTurnoverShare float64 `yaml:"low_turnover_share"`
}

// DefaultPolicy returns the production thresholds
func DefaultPolicy() Policy {
	return Policy{
		LowRiskRatio:       0.3,
		HighRiskRatio:      0.6,
		OverdueIncomeShare: 0.8,
		LoanIncomeMultiple: 2.0,
		LowTurnoverShare:   0.3,
	}
}

// Validate checks threshold ordering and signs
func (p Policy) Validate() error {
	if p.LowRiskRatio <= 0 {
		return fmt.Errorf("low_risk_ratio must be positive, got %v", p.LowRiskRatio)
	}
	if p.HighRiskRatio <= p.LowRiskRatio {
		return fmt.Errorf("high_risk_ratio (%v) must exceed low_risk_ratio (%v)", p.HighRiskRatio, p.LowRiskRatio)
	}
	if p.OverdueIncomeShare <= 0 {
		return fmt.Errorf("overdue_income_share must be positive, got %v", p.OverdueIncomeShare)
	}
	if p.LoanIncomeMultiple <= 0 {
		return fmt.Errorf("loan_income_multiple must be positive, got %v", p.LoanIncomeMultiple)
	}
	if p.LowTurnoverShare < 0 {
		return fmt.Errorf("low_turnover_share must not be negative, got %v", p.LowTurnoverShare)
	}
	return nil
}

// ParsePolicy decodes YAML on top of the default policy
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

// LoadPolicy reads a YAML policy file. An empty path yields the default policy.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

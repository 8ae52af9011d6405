// Package decision maps a client's financial fields to a risk level and a
// credit recommendation. Decide is deterministic: the same record and policy
// always give the same result.
package decision

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/expiwt/AlphaHack/internal/models"
)

// Decision is the derived part of a client record
type Decision struct {
	RiskLevel      *models.RiskLevel
	Recommendation models.Recommendation
	Reasoning      string
}

// Engine applies the current policy. The policy can be swapped at runtime.
type Engine struct {
	policy atomic.Pointer[Policy]
}

// NewEngine creates an engine with the given policy
func NewEngine(p Policy) (*Engine, error) {
	e := &Engine{}
	if err := e.SetPolicy(p); err != nil {
		return nil, err
	}
	return e, nil
}

// Policy returns the policy in effect
func (e *Engine) Policy() Policy {
	return *e.policy.Load()
}

// SetPolicy validates and installs a new policy
func (e *Engine) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.policy.Store(&p)
	return nil
}

// Apply returns a copy of rec with the debt ratio and every decision field recomputed
func (e *Engine) Apply(rec models.ClientRecord) models.ClientRecord {
	out := rec.Clone()
	if ratio := DebtRatio(out.IncomeValue, out.OvrdSum); ratio != nil {
		out.HDBIncomeRatio = ratio
	} else if ratioOutOfRange(out.IncomeValue, out.OvrdSum) {
		out.HDBIncomeRatio = nil
	}
	d := Decide(e.Policy(), out)
	out.RiskLevel = d.RiskLevel
	out.Recommendation = d.Recommendation
	out.Reasoning = d.Reasoning
	return out
}

// DebtRatio is ovrd / income, or nil when it cannot be derived or is not finite
func DebtRatio(income, ovrd *float64) *float64 {
	if income == nil || ovrd == nil || *income <= 0 {
		return nil
	}
	r := *ovrd / *income
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return nil
	}
	return &r
}

// ratioOutOfRange reports inputs that are known but whose ratio overflows
func ratioOutOfRange(income, ovrd *float64) bool {
	return income != nil && ovrd != nil && *income > 0 && DebtRatio(income, ovrd) == nil
}

// Decide evaluates rec under p. Missing inputs degrade to REVIEW.
func Decide(p Policy, rec models.ClientRecord) Decision {
	income := rec.IncomeValue
	if income == nil {
		return review(fmt.Sprintf("income_value is unknown (ovrd_sum=%s, loan_cur_amt=%s); manual review required",
			formatOpt(rec.OvrdSum), formatOpt(rec.LoanCurAmt)))
	}
	if *income <= 0 {
		return review(fmt.Sprintf("income_value is %s; debt ratio cannot be assessed", formatMoney(*income)))
	}

	if ratioOutOfRange(income, rec.OvrdSum) {
		return review(fmt.Sprintf("hdb_income_ratio of ovrd_sum %s to income_value %s is out of range; manual review required",
			formatMoney(*rec.OvrdSum), formatMoney(*income)))
	}
	ratio := DebtRatio(income, rec.OvrdSum)
	if ratio == nil {
		ratio = rec.HDBIncomeRatio
	}
	if ratio == nil {
		return review(fmt.Sprintf("ovrd_sum and hdb_income_ratio are unknown for income_value %s; manual review required",
			formatMoney(*income)))
	}

	var (
		risk   models.RiskLevel
		reason string
	)
	switch {
	case *ratio < p.LowRiskRatio:
		risk = models.RiskLevelLow
		reason = fmt.Sprintf("hdb_income_ratio %.4f below low-risk threshold %.2f", *ratio, p.LowRiskRatio)
	case *ratio < p.HighRiskRatio:
		risk = models.RiskLevelMedium
		reason = fmt.Sprintf("hdb_income_ratio %.4f between thresholds %.2f and %.2f", *ratio, p.LowRiskRatio, p.HighRiskRatio)
	default:
		risk = models.RiskLevelHigh
		reason = fmt.Sprintf("hdb_income_ratio %.4f at or above high-risk threshold %.2f", *ratio, p.HighRiskRatio)
	}

	if rec.OvrdSum != nil && *rec.OvrdSum > *income*p.OverdueIncomeShare {
		risk = models.RiskLevelHigh
		reason = fmt.Sprintf("ovrd_sum %s exceeds %.0f%% of income_value %s",
			formatMoney(*rec.OvrdSum), p.OverdueIncomeShare*100, formatMoney(*income))
	}

	if risk == models.RiskLevelLow && rec.AvgCurCrTurn != nil &&
		*rec.AvgCurCrTurn > 0 && *rec.AvgCurCrTurn < *income*p.LowTurnoverShare {
		risk = models.RiskLevelMedium
		reason = fmt.Sprintf("avg_cur_cr_turn %s below %.0f%% of income_value %s",
			formatMoney(*rec.AvgCurCrTurn), p.LowTurnoverShare*100, formatMoney(*income))
	}

	if risk == models.RiskLevelHigh {
		return decided(risk, models.RecommendationReject, reason)
	}

	bound := *income * p.LoanIncomeMultiple
	if rec.LoanCurAmt != nil && *rec.LoanCurAmt > bound {
		return decided(risk, models.RecommendationReject,
			fmt.Sprintf("loan_cur_amt %s exceeds affordability bound %s (%.1fx income_value %s)",
				formatMoney(*rec.LoanCurAmt), formatMoney(bound), p.LoanIncomeMultiple, formatMoney(*income)))
	}
	if rec.LoanCurAmt != nil {
		reason += fmt.Sprintf("; loan_cur_amt %s within bound %s", formatMoney(*rec.LoanCurAmt), formatMoney(bound))
	}
	return decided(risk, models.RecommendationApprove, reason)
}

func decided(risk models.RiskLevel, rec models.Recommendation, reason string) Decision {
	return Decision{RiskLevel: &risk, Recommendation: rec, Reasoning: reason}
}

func review(reason string) Decision {
	return Decision{Recommendation: models.RecommendationReview, Reasoning: reason}
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatOpt(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return formatMoney(*v)
}

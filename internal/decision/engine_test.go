package decision

import (
	"testing"

	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risk(l models.RiskLevel) *models.RiskLevel { return &l }

func TestDecide(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name     string
		rec      models.ClientRecord
		risk     *models.RiskLevel
		decision models.Recommendation
		contains string
	}{
		{
			name:     "low ratio affordable loan is approved",
			rec:      models.ClientRecord{ID: "cli_1", IncomeValue: models.Float(50000), OvrdSum: models.Float(10000), LoanCurAmt: models.Float(40000)},
			risk:     risk(models.RiskLevelLow),
			decision: models.RecommendationApprove,
			contains: "0.2000",
		},
		{
			name:     "medium ratio is approved when affordable",
			rec:      models.ClientRecord{ID: "c", IncomeValue: models.Float(100000), OvrdSum: models.Float(45000), LoanCurAmt: models.Float(50000)},
			risk:     risk(models.RiskLevelMedium),
			decision: models.RecommendationApprove,
			contains: "0.4500",
		},
		{
			name:     "high ratio is rejected",
			rec:      models.ClientRecord{ID: "c", IncomeValue: models.Float(100000), OvrdSum: models.Float(70000)},
			risk:     risk(models.RiskLevelHigh),
			decision: models.RecommendationReject,
			contains: "0.7000",
		},
		{
			name:     "overdue above share of income is high risk",
			rec:      models.ClientRecord{ID: "c", IncomeValue: models.Float(100000), OvrdSum: models.Float(90000)},
			risk:     risk(models.RiskLevelHigh),
			decision: models.RecommendationReject,
			contains: "ovrd_sum 90000.00",
		},
		{
			name:     "loan above affordability bound is rejected",
			rec:      models.ClientRecord{ID: "c", IncomeValue: models.Float(50000), OvrdSum: models.Float(0), LoanCurAmt: models.Float(150000)},
			risk:     risk(models.RiskLevelLow),
			decision: models.RecommendationReject,
			contains: "loan_cur_amt 150000.00",
		},
		{
			name:     "low turnover raises low to medium",
			rec:      models.ClientRecord{ID: "c", IncomeValue: models.Float(100000), OvrdSum: models.Float(0), AvgCurCrTurn: models.Float(1000)},
			risk:     risk(models.RiskLevelMedium),
			decision: models.RecommendationApprove,
			contains: "avg_cur_cr_turn 1000.00",
		},
		{
			name:     "missing income is reviewed",
			rec:      models.ClientRecord{ID: "c", OvrdSum: models.Float(100)},
			decision: models.RecommendationReview,
			contains: "ovrd_sum=100.00",
		},
		{
			name:     "zero income is reviewed",
			rec:      models.ClientRecord{ID: "c", IncomeValue: models.Float(0), OvrdSum: models.Float(0)},
			decision: models.RecommendationReview,
			contains: "0.00",
		},
		{
			name:     "missing overdue and ratio is reviewed",
			rec:      models.ClientRecord{ID: "c", IncomeValue: models.Float(80000)},
			decision: models.RecommendationReview,
			contains: "80000.00",
		},
		{
			name:     "provided ratio is used when overdue is unknown",
			rec:      models.ClientRecord{ID: "c", IncomeValue: models.Float(80000), HDBIncomeRatio: models.Float(0.1)},
			risk:     risk(models.RiskLevelLow),
			decision: models.RecommendationApprove,
			contains: "0.1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(p, tt.rec)
			assert.Equal(t, tt.risk, d.RiskLevel)
			assert.Equal(t, tt.decision, d.Recommendation)
			assert.Contains(t, d.Reasoning, tt.contains)
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	rec := models.ClientRecord{ID: "c", IncomeValue: models.Float(120000), OvrdSum: models.Float(40000), LoanCurAmt: models.Float(10000)}
	first := Decide(DefaultPolicy(), rec)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Decide(DefaultPolicy(), rec))
	}
}

func TestEngineApply(t *testing.T) {
	e, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)

	rec := models.ClientRecord{ID: "cli_1", IncomeValue: models.Float(50000), OvrdSum: models.Float(10000), LoanCurAmt: models.Float(40000)}
	out := e.Apply(rec)

	require.NotNil(t, out.HDBIncomeRatio)
	assert.InDelta(t, 0.2, *out.HDBIncomeRatio, 1e-9)
	assert.Equal(t, models.RiskLevelLow, *out.RiskLevel)
	assert.Equal(t, models.RecommendationApprove, out.Recommendation)
	assert.Nil(t, rec.HDBIncomeRatio, "input must not be mutated")
}

func TestEngineApplyKeepsProvidedRatioWhenNotDerivable(t *testing.T) {
	e, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)

	out := e.Apply(models.ClientRecord{ID: "c", HDBIncomeRatio: models.Float(0.42)})
	assert.InDelta(t, 0.42, *out.HDBIncomeRatio, 1e-9)
	assert.Nil(t, out.RiskLevel)
	assert.Equal(t, models.RecommendationReview, out.Recommendation)
}

func TestEngineSetPolicy(t *testing.T) {
	e, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)

	rec := models.ClientRecord{ID: "c", IncomeValue: models.Float(100000), OvrdSum: models.Float(25000)}
	assert.Equal(t, models.RiskLevelLow, *e.Apply(rec).RiskLevel)

	tighter := DefaultPolicy()
	tighter.LowRiskRatio = 0.2
	require.NoError(t, e.SetPolicy(tighter))
	assert.Equal(t, models.RiskLevelMedium, *e.Apply(rec).RiskLevel)

	bad := DefaultPolicy()
	bad.HighRiskRatio = 0.1
	assert.Error(t, e.SetPolicy(bad))
	assert.Equal(t, tighter, e.Policy())
}

func TestDebtRatio(t *testing.T) {
	assert.Nil(t, DebtRatio(nil, models.Float(1)))
	assert.Nil(t, DebtRatio(models.Float(1), nil))
	assert.Nil(t, DebtRatio(models.Float(0), models.Float(1)))
	assert.InDelta(t, 0.25, *DebtRatio(models.Float(4000), models.Float(1000)), 1e-12)
	assert.Nil(t, DebtRatio(models.Float(1e-300), models.Float(1e10)), "overflowing ratio is not derivable")
}

func TestEngineApplyOverflowingRatioGoesToReview(t *testing.T) {
	e, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)

	out := e.Apply(models.ClientRecord{
		ID:             "big",
		IncomeValue:    models.Float(1e-300),
		OvrdSum:        models.Float(1e10),
		HDBIncomeRatio: models.Float(0.1),
	})
	assert.Nil(t, out.HDBIncomeRatio)
	assert.Nil(t, out.RiskLevel)
	assert.Equal(t, models.RecommendationReview, out.Recommendation)
	assert.Contains(t, out.Reasoning, "out of range")
}

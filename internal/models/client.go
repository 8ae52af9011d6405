package models

import "strings"

// Gender of a client
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender accepts MALE/FEMALE and the M/F shorthand, case-insensitively
func ParseGender(s string) (Gender, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MALE":
		return GenderMale, true
	case "F", "FEMALE":
		return GenderFemale, true
	}
	return "", false
}

// RiskLevel is the categorical credit risk of a client
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel validates a risk level filter value
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case RiskLevelLow:
		return RiskLevelLow, true
	case RiskLevelMedium:
		return RiskLevelMedium, true
	case RiskLevelHigh:
		return RiskLevelHigh, true
	}
	return "", false
}

// Recommendation is the credit decision for a client
type Recommendation string

const (
	RecommendationApprove Recommendation = "APPROVE"
	RecommendationReject  Recommendation = "REJECT"
	RecommendationReview  Recommendation = "REVIEW"
)

// IncomeCategory buckets clients by income value
type IncomeCategory string

const (
	IncomeCategoryLow     IncomeCategory = "LOW"
	IncomeCategoryMiddle  IncomeCategory = "MIDDLE"
	IncomeCategoryHigh    IncomeCategory = "HIGH"
	IncomeCategoryUnknown IncomeCategory = "UNKNOWN"
)

// IncomeCategories lists every bucket in display order
var IncomeCategories = []IncomeCategory{
	IncomeCategoryLow,
	IncomeCategoryMiddle,
	IncomeCategoryHigh,
	IncomeCategoryUnknown,
}

// CategorizeIncome maps an income value to its bucket; nil is UNKNOWN
func CategorizeIncome(income *float64) IncomeCategory {
	switch {
	case income == nil:
		return IncomeCategoryUnknown
	case *income < 100000:
		return IncomeCategoryLow
	case *income < 200000:
		return IncomeCategoryMiddle
	default:
		return IncomeCategoryHigh
	}
}

// ClientRecord represents a client financial record.
// Nil pointers mean "unknown" and are serialized as null, never as zero.
type ClientRecord struct {
	ID              string         `json:"id"`
	Age             *int           `json:"age"`
	Gender          *Gender        `json:"gender"`
	City            *string        `json:"city"`
	Region          *string        `json:"region"`
	IncomeValue     *float64       `json:"income_value"`
	IncomeReal      *float64       `json:"income_real"`
	IncomePredicted *float64       `json:"income_predicted"`
	Confidence      *float64       `json:"confidence"`
	IncomeCategory  IncomeCategory `json:"income_category"`
	Target          *float64       `json:"target"`
	AvgCurCrTurn    *float64       `json:"avg_cur_cr_turn"`
	OvrdSum         *float64       `json:"ovrd_sum"`
	LoanCurAmt      *float64       `json:"loan_cur_amt"`
	HDBIncomeRatio  *float64       `json:"hdb_income_ratio"`
	RiskLevel       *RiskLevel     `json:"risk_level"`
	Recommendation  Recommendation `json:"recommendation"`
	Reasoning       string         `json:"reasoning"`
}

// Clone returns a deep copy so stored records are never shared with callers
func (c ClientRecord) Clone() ClientRecord {
	out := c
	out.Age = clonePtr(c.Age)
	out.Gender = clonePtr(c.Gender)
	out.City = clonePtr(c.City)
	out.Region = clonePtr(c.Region)
	out.IncomeValue = clonePtr(c.IncomeValue)
	out.IncomeReal = clonePtr(c.IncomeReal)
	out.IncomePredicted = clonePtr(c.IncomePredicted)
	out.Confidence = clonePtr(c.Confidence)
	out.Target = clonePtr(c.Target)
	out.AvgCurCrTurn = clonePtr(c.AvgCurCrTurn)
	out.OvrdSum = clonePtr(c.OvrdSum)
	out.LoanCurAmt = clonePtr(c.LoanCurAmt)
	out.HDBIncomeRatio = clonePtr(c.HDBIncomeRatio)
	out.RiskLevel = clonePtr(c.RiskLevel)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }

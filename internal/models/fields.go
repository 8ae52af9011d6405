package models

import "strings"

// Canonical snake_case names of ClientRecord fields
const (
	FieldID              = "id"
	FieldAge             = "age"
	FieldGender          = "gender"
	FieldCity            = "city"
	FieldRegion          = "region"
	FieldIncomeValue     = "income_value"
	FieldIncomeReal      = "income_real"
	FieldIncomePredicted = "income_predicted"
	FieldConfidence      = "confidence"
	FieldIncomeCategory  = "income_category"
	FieldTarget          = "target"
	FieldAvgCurCrTurn    = "avg_cur_cr_turn"
	FieldOvrdSum         = "ovrd_sum"
	FieldLoanCurAmt      = "loan_cur_amt"
	FieldHDBIncomeRatio  = "hdb_income_ratio"
	FieldRiskLevel       = "risk_level"
	FieldRecommendation  = "recommendation"
	FieldReasoning       = "reasoning"
)

var fieldAliases = map[string]string{}

func init() {
	for _, f := range []string{
		FieldID, FieldAge, FieldGender, FieldCity, FieldRegion, FieldIncomeValue, FieldIncomeReal,
		FieldIncomePredicted, FieldConfidence, FieldIncomeCategory, FieldTarget, FieldAvgCurCrTurn,
		FieldOvrdSum, FieldLoanCurAmt, FieldHDBIncomeRatio, FieldRiskLevel, FieldRecommendation, FieldReasoning,
	} {
		fieldAliases[foldField(f)] = f
	}
	// client_id comes from the older clients schema
	fieldAliases["clientid"] = FieldID
}

// CanonicalField resolves snake_case and camelCase spellings ("incomeValue",
// "income_value", "client_id") to the canonical field name
func CanonicalField(name string) (string, bool) {
	f, ok := fieldAliases[foldField(name)]
	return f, ok
}

func foldField(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
}

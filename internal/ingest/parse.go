package ingest

import (
	"fmt"
	"math"
	"strings"

	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/shopspring/decimal"
)

// maxAge bounds the age column
const maxAge = 150

// absentTokens are cell values that mean "unknown"
var absentTokens = map[string]bool{
	"":     true,
	"-":    true,
	"na":   true,
	"nan":  true,
	"null": true,
	"none": true,
}

func isAbsent(cell string) bool {
	return absentTokens[strings.ToLower(strings.TrimSpace(cell))]
}

// parseAmount coerces a cell to a non-negative decimal. Absent cells give nil.
func parseAmount(field, cell string) (*float64, error) {
	if isAbsent(cell) {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(cell))
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", field, cell)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%s must not be negative, got %s", field, d.String())
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s out of range, got %s", field, strings.TrimSpace(cell))
	}
	return &f, nil
}

func parseAge(cell string) (*int, error) {
	v, err := parseAmount(models.FieldAge, cell)
	if err != nil || v == nil {
		return nil, err
	}
	if *v > maxAge {
		return nil, fmt.Errorf("%s out of range, got %s", models.FieldAge, strings.TrimSpace(cell))
	}
	d := decimal.NewFromFloat(*v)
	if !d.IsInteger() {
		return nil, fmt.Errorf("invalid %s %q", models.FieldAge, cell)
	}
	return models.Int(int(d.IntPart())), nil
}

func parseConfidence(cell string) (*float64, error) {
	v, err := parseAmount(models.FieldConfidence, cell)
	if err != nil || v == nil {
		return nil, err
	}
	if *v > 1 {
		return nil, fmt.Errorf("%s must be within [0,1], got %s", models.FieldConfidence, strings.TrimSpace(cell))
	}
	return v, nil
}

// parseID trims an id cell; absent tokens give an empty id
func parseID(cell string) string {
	if isAbsent(cell) {
		return ""
	}
	return strings.TrimSpace(cell)
}

func parseText(cell string) *string {
	if isAbsent(cell) {
		return nil
	}
	return models.String(strings.TrimSpace(cell))
}

// parseRow builds a record from one CSV row. columns maps a cell index to
// its canonical field; cells of derived or unknown columns are ignored.
func parseRow(columns []string, cells []string) (models.ClientRecord, error) {
	var rec models.ClientRecord
	if len(cells) != len(columns) {
		for i, field := range columns {
			if field == models.FieldID && i < len(cells) {
				rec.ID = parseID(cells[i])
			}
		}
		return rec, fmt.Errorf("expected %d fields, got %d", len(columns), len(cells))
	}
	for i, field := range columns {
		cell := cells[i]
		var err error
		switch field {
		case models.FieldID:
			rec.ID = parseID(cell)
		case models.FieldAge:
			rec.Age, err = parseAge(cell)
		case models.FieldGender:
			if !isAbsent(cell) {
				if g, ok := models.ParseGender(cell); ok {
					rec.Gender = &g
				} else {
					err = fmt.Errorf("invalid %s %q", field, cell)
				}
			}
		case models.FieldCity:
			rec.City = parseText(cell)
		case models.FieldRegion:
			rec.Region = parseText(cell)
		case models.FieldConfidence:
			rec.Confidence, err = parseConfidence(cell)
		case models.FieldIncomeValue:
			rec.IncomeValue, err = parseAmount(field, cell)
		case models.FieldIncomeReal:
			rec.IncomeReal, err = parseAmount(field, cell)
		case models.FieldIncomePredicted:
			rec.IncomePredicted, err = parseAmount(field, cell)
		case models.FieldTarget:
			rec.Target, err = parseAmount(field, cell)
		case models.FieldAvgCurCrTurn:
			rec.AvgCurCrTurn, err = parseAmount(field, cell)
		case models.FieldOvrdSum:
			rec.OvrdSum, err = parseAmount(field, cell)
		case models.FieldLoanCurAmt:
			rec.LoanCurAmt, err = parseAmount(field, cell)
		case models.FieldHDBIncomeRatio:
			rec.HDBIncomeRatio, err = parseAmount(field, cell)
		}
		if err != nil {
			return rec, err
		}
	}
	if rec.ID == "" {
		return rec, fmt.Errorf("missing id")
	}
	return rec, nil
}

package models

import "time"

// MetricValue represents train/test quality of the income model for one metric
type MetricValue struct {
	MetricName string  `json:"metric_name"`
	TrainValue float64 `json:"train_value"`
	TestValue  float64 `json:"test_value"`
	Unit       string  `json:"unit"`
}

// ModelMetric is a single stored metric row
type ModelMetric struct {
	Name         string  `json:"metric_name"`
	Dataset      string  `json:"dataset"` // train or test
	Value        float64 `json:"value"`
	ModelVersion string  `json:"model_version"`
}

// Stats represents the headline dashboard numbers
type Stats struct {
	TotalPredictions int           `json:"total_predictions"`
	TotalClients     int           `json:"total_clients"`
	AvgConfidence    float64       `json:"avg_confidence"`
	ModelVersion     string        `json:"model_version"`
	LastUpdate       time.Time     `json:"last_update"`
	KeyRate          *float64      `json:"key_rate,omitempty"`
	Metrics          []MetricValue `json:"metrics"`
}

// IncomeDistribution represents one income bucket of the dashboard
type IncomeDistribution struct {
	Category   IncomeCategory `json:"category"`
	Count      int            `json:"count"`
	Percentage float64        `json:"percentage"`
}

// CreditDecisions summarizes recommendations across all clients
type CreditDecisions struct {
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	Review       int     `json:"review"`
	ApprovalRate float64 `json:"approval_rate"` // approved / (approved + rejected) * 100
}

// DashboardStats is computed on demand and never persisted
type DashboardStats struct {
	Stats              Stats                `json:"stats"`
	IncomeDistribution []IncomeDistribution `json:"income_distribution"`
	CreditDecisions    CreditDecisions      `json:"credit_decisions"`
}

// Prediction compares predicted and actual income of a client
type Prediction struct {
	ClientID        string         `json:"client_id"`
	PredictedIncome *float64       `json:"predicted_income"`
	ActualIncome    *float64       `json:"actual_income"`
	Confidence      *float64       `json:"confidence"`
	IncomeCategory  IncomeCategory `json:"income_category"`
	Error           *float64       `json:"error"`
	ErrorPercent    *float64       `json:"error_percent"`
	ModelVersion    string         `json:"model_version"`
}

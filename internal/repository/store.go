package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/expiwt/AlphaHack/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when registering an existing email
	ErrEmailTaken = errors.New("email already registered")
)

// SortOrder is the direction of a listing
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSortOrder validates an order query value; empty means descending
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OrderDesc):
		return OrderDesc, nil
	case string(OrderAsc):
		return OrderAsc, nil
	}
	return "", fmt.Errorf("order must be asc or desc, got %q", s)
}

// ListQuery filters, sorts and pages a client listing
type ListQuery struct {
	RiskLevel *models.RiskLevel
	SortBy    string // canonical field name, see SortableField
	Order     SortOrder
	Limit     int
	Offset    int
}

// ListResult is one page of clients plus the filtered total
type ListResult struct {
	Items []models.ClientRecord `json:"items"`
	Total int                   `json:"total"`
}

// ClientStore is the record store for client records
type ClientStore interface {
	GetClient(ctx context.Context, id string) (*models.ClientRecord, error)
	// UpsertClient replaces every field of the record with the given id atomically
	UpsertClient(ctx context.Context, rec models.ClientRecord) error
	// UpdateClient atomically replaces the record with fn applied to its current value
	UpdateClient(ctx context.Context, id string, fn func(models.ClientRecord) models.ClientRecord) error
	ListClients(ctx context.Context, q ListQuery) (ListResult, error)
	// ScanClients calls fn for every stored record in id order
	ScanClients(ctx context.Context, fn func(models.ClientRecord) error) error
	CountClients(ctx context.Context) (int, error)
}

// UserStore persists analyst accounts
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// UploadStore keeps the history of CSV uploads
type UploadStore interface {
	SaveUpload(ctx context.Context, upload *models.Upload) error
	ListUploads(ctx context.Context, limit int) ([]models.Upload, error)
}

// MetricStore serves income model quality metrics
type MetricStore interface {
	ListModelMetrics(ctx context.Context, version string) ([]models.ModelMetric, error)
}

// Store bundles every persistence concern of the service
type Store interface {
	ClientStore
	UserStore
	UploadStore
	MetricStore
	Ping(ctx context.Context) error
}

// sortColumns maps sortable fields to their column names
var sortColumns = map[string]string{
	models.FieldID:              "id",
	models.FieldAge:             "age",
	models.FieldCity:            "city",
	models.FieldRegion:          "region",
	models.FieldIncomeValue:     "income_value",
	models.FieldIncomeReal:      "income_real",
	models.FieldIncomePredicted: "income_predicted",
	models.FieldConfidence:      "confidence",
	models.FieldTarget:          "target",
	models.FieldAvgCurCrTurn:    "avg_cur_cr_turn",
	models.FieldOvrdSum:         "ovrd_sum",
	models.FieldLoanCurAmt:      "loan_cur_amt",
	models.FieldHDBIncomeRatio:  "hdb_income_ratio",
}

// SortableField resolves a sort key in any supported spelling
func SortableField(name string) (string, bool) {
	f, ok := models.CanonicalField(name)
	if !ok {
		return "", false
	}
	_, ok = sortColumns[f]
	return f, ok
}

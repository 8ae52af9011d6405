package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/expiwt/AlphaHack/internal/models"
)

// MemoryRepository is a process-local Store. Every write swaps a whole
// record under the lock so readers never see a partial update.
type MemoryRepository struct {
	mu      sync.RWMutex
	clients map[string]models.ClientRecord
	users   map[string]models.User
	nextID  int64
	uploads []models.Upload
	metrics []models.ModelMetric
}

// NewMemoryRepository creates an empty in-memory store
func NewMemoryRepository(metrics ...models.ModelMetric) *MemoryRepository {
	return &MemoryRepository{
		clients: make(map[string]models.ClientRecord),
		users:   make(map[string]models.User),
		metrics: metrics,
	}
}

// Ping always succeeds
func (m *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CreateUser stores a user with a fresh id
func (m *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, exists := m.users[key]; exists {
		return ErrEmailTaken
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now().UTC()
	m.users[key] = *user
	return nil
}

// FindUserByEmail retrieves a user by email
func (m *MemoryRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// UpsertClient replaces the record with the same id
func (m *MemoryRepository) UpsertClient(ctx context.Context, rec models.ClientRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = rec.Clone()
	m.mu.Lock()
	m.clients[rec.ID] = rec
	m.mu.Unlock()
	return nil
}

// UpdateClient applies fn to the stored record under the write lock
func (m *MemoryRepository) UpdateClient(ctx context.Context, id string, fn func(models.ClientRecord) models.ClientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.clients[id]
	if !ok {
		return ErrNotFound
	}
	updated := fn(rec.Clone()).Clone()
	updated.ID = id
	m.clients[id] = updated
	return nil
}

// GetClient retrieves a client by id
func (m *MemoryRepository) GetClient(ctx context.Context, id string) (*models.ClientRecord, error) {
	m.mu.RLock()
	rec, ok := m.clients[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	rec = rec.Clone()
	return &rec, nil
}

// ListClients returns one filtered, sorted page of clients.
// Unknown sort keys come last in both directions; ties are broken by id.
func (m *MemoryRepository) ListClients(ctx context.Context, q ListQuery) (ListResult, error) {
	m.mu.RLock()
	matched := make([]models.ClientRecord, 0, len(m.clients))
	for _, rec := range m.clients {
		if q.RiskLevel != nil && (rec.RiskLevel == nil || *rec.RiskLevel != *q.RiskLevel) {
			continue
		}
		matched = append(matched, rec)
	}
	m.mu.RUnlock()

	sortClients(matched, q.SortBy, q.Order)

	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	items := make([]models.ClientRecord, 0, end-start)
	for _, rec := range matched[start:end] {
		items = append(items, rec.Clone())
	}
	return ListResult{Items: items, Total: total}, nil
}

// ScanClients calls fn for every client in id order
func (m *MemoryRepository) ScanClients(ctx context.Context, fn func(models.ClientRecord) error) error {
	m.mu.RLock()
	all := make([]models.ClientRecord, 0, len(m.clients))
	for _, rec := range m.clients {
		all = append(all, rec.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, rec := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// CountClients returns the number of stored clients
func (m *MemoryRepository) CountClients(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients), nil
}

// SaveUpload records a processed upload
func (m *MemoryRepository) SaveUpload(ctx context.Context, upload *models.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, *upload)
	return nil
}

// ListUploads returns the most recent uploads first
func (m *MemoryRepository) ListUploads(ctx context.Context, limit int) ([]models.Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Upload, 0, min(limit, len(m.uploads)))
	for i := len(m.uploads) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.uploads[i])
	}
	return out, nil
}

// ListModelMetrics returns metrics of a model version
func (m *MemoryRepository) ListModelMetrics(ctx context.Context, version string) ([]models.ModelMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ModelMetric
	for _, metric := range m.metrics {
		if metric.ModelVersion == version {
			out = append(out, metric)
		}
	}
	return out, nil
}

type sortKey struct {
	num   float64
	str   string
	isStr bool
	known bool
}

func keyOf(rec models.ClientRecord, field string) sortKey {
	num := func(v *float64) sortKey {
		if v == nil {
			return sortKey{}
		}
		return sortKey{num: *v, known: true}
	}
	str := func(v *string) sortKey {
		if v == nil {
			return sortKey{isStr: true}
		}
		return sortKey{str: *v, isStr: true, known: true}
	}
	switch field {
	case models.FieldAge:
		if rec.Age == nil {
			return sortKey{}
		}
		return sortKey{num: float64(*rec.Age), known: true}
	case models.FieldCity:
		return str(rec.City)
	case models.FieldRegion:
		return str(rec.Region)
	case models.FieldIncomeValue:
		return num(rec.IncomeValue)
	case models.FieldIncomeReal:
		return num(rec.IncomeReal)
	case models.FieldIncomePredicted:
		return num(rec.IncomePredicted)
	case models.FieldConfidence:
		return num(rec.Confidence)
	case models.FieldTarget:
		return num(rec.Target)
	case models.FieldAvgCurCrTurn:
		return num(rec.AvgCurCrTurn)
	case models.FieldOvrdSum:
		return num(rec.OvrdSum)
	case models.FieldLoanCurAmt:
		return num(rec.LoanCurAmt)
	case models.FieldHDBIncomeRatio:
		return num(rec.HDBIncomeRatio)
	}
	return sortKey{str: rec.ID, isStr: true, known: true}
}

func compareKeys(a, b sortKey) int {
	if a.isStr {
		return strings.Compare(a.str, b.str)
	}
	switch {
	case a.num < b.num:
		return -1
	case a.num > b.num:
		return 1
	}
	return 0
}

func sortClients(recs []models.ClientRecord, field string, order SortOrder) {
	if _, ok := sortColumns[field]; !ok {
		field = models.FieldID
	}
	desc := order != OrderAsc
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := keyOf(recs[i], field), keyOf(recs[j], field)
		if a.known != b.known {
			return a.known
		}
		if a.known {
			if c := compareKeys(a, b); c != 0 {
				if desc {
					return c > 0
				}
				return c < 0
			}
		}
		return recs[i].ID < recs[j].ID
	})
}

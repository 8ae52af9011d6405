package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/lib/pq"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS credit;

CREATE TABLE IF NOT EXISTS credit.users (
	id            BIGSERIAL PRIMARY KEY,
	email         VARCHAR(255) NOT NULL UNIQUE,
	full_name     VARCHAR(255) NOT NULL DEFAULT '',
	password_hash VARCHAR(255) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS credit.clients (
	id               VARCHAR(64) PRIMARY KEY,
	age              INTEGER,
	gender           VARCHAR(16),
	city             VARCHAR(255),
	region           VARCHAR(255),
	income_value     DOUBLE PRECISION,
	income_real      DOUBLE PRECISION,
	income_predicted DOUBLE PRECISION,
	confidence       DOUBLE PRECISION,
	income_category  VARCHAR(16) NOT NULL,
	target           DOUBLE PRECISION,
	avg_cur_cr_turn  DOUBLE PRECISION,
	ovrd_sum         DOUBLE PRECISION,
	loan_cur_amt     DOUBLE PRECISION,
	hdb_income_ratio DOUBLE PRECISION,
	risk_level       VARCHAR(16),
	recommendation   VARCHAR(16) NOT NULL,
	reasoning        TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS clients_risk_level_idx ON credit.clients (risk_level);

CREATE TABLE IF NOT EXISTS credit.uploads (
	id            VARCHAR(36) PRIMARY KEY,
	file_name     VARCHAR(255) NOT NULL,
	checksum      VARCHAR(64) NOT NULL,
	uploaded_by   VARCHAR(255) NOT NULL,
	processed     INTEGER NOT NULL,
	rejected_rows JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credit.model_metrics (
	metric_name   VARCHAR(100) NOT NULL,
	dataset       VARCHAR(10) NOT NULL,
	metric_value  DOUBLE PRECISION NOT NULL,
	model_version VARCHAR(20) NOT NULL,
	PRIMARY KEY (metric_name, dataset, model_version)
);`

const clientColumns = `id, age, gender, city, region, income_value, income_real, income_predicted,
	confidence, income_category, target, avg_cur_cr_turn, ovrd_sum, loan_cur_amt, hdb_income_ratio,
	risk_level, recommendation, reasoning`

// Repository provides database operations on PostgreSQL
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the schema if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO credit.users (email, full_name, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, user.Email, user.FullName, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, full_name, password_hash, created_at
		FROM credit.users
		WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertClient inserts a client or replaces every column of the existing row in one statement
func (r *Repository) UpsertClient(ctx context.Context, rec models.ClientRecord) error {
	return upsertClient(ctx, r.db, rec)
}

// UpdateClient locks the row, applies fn and writes the result in one transaction
func (r *Repository) UpdateClient(ctx context.Context, id string, fn func(models.ClientRecord) models.ClientRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + clientColumns + ` FROM credit.clients WHERE id = $1 FOR UPDATE`
	rec, err := scanClient(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock client: %w", err)
	}
	updated := fn(*rec)
	updated.ID = id
	if err := upsertClient(ctx, tx, updated); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client update: %w", err)
	}
	return nil
}

func upsertClient(ctx context.Context, db execer, rec models.ClientRecord) error {
	query := `
		INSERT INTO credit.clients (` + clientColumns + `, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			age = EXCLUDED.age,
			gender = EXCLUDED.gender,
			city = EXCLUDED.city,
			region = EXCLUDED.region,
			income_value = EXCLUDED.income_value,
			income_real = EXCLUDED.income_real,
			income_predicted = EXCLUDED.income_predicted,
			confidence = EXCLUDED.confidence,
			income_category = EXCLUDED.income_category,
			target = EXCLUDED.target,
			avg_cur_cr_turn = EXCLUDED.avg_cur_cr_turn,
			ovrd_sum = EXCLUDED.ovrd_sum,
			loan_cur_amt = EXCLUDED.loan_cur_amt,
			hdb_income_ratio = EXCLUDED.hdb_income_ratio,
			risk_level = EXCLUDED.risk_level,
			recommendation = EXCLUDED.recommendation,
			reasoning = EXCLUDED.reasoning,
			updated_at = CURRENT_TIMESTAMP`
	_, err := db.ExecContext(ctx, query,
		rec.ID, rec.Age, rec.Gender, rec.City, rec.Region, rec.IncomeValue, rec.IncomeReal,
		rec.IncomePredicted, rec.Confidence, rec.IncomeCategory, rec.Target, rec.AvgCurCrTurn,
		rec.OvrdSum, rec.LoanCurAmt, rec.HDBIncomeRatio, rec.RiskLevel, rec.Recommendation, rec.Reasoning)
	if err != nil {
		return fmt.Errorf("failed to upsert client %s: %w", rec.ID, err)
	}
	return nil
}

// GetClient retrieves a client by id
func (r *Repository) GetClient(ctx context.Context, id string) (*models.ClientRecord, error) {
	query := `SELECT ` + clientColumns + ` FROM credit.clients WHERE id = $1`
	rec, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return rec, nil
}

// ListClients returns one filtered, sorted page of clients.
// NULL sort keys come last in both directions; ties are broken by id.
func (r *Repository) ListClients(ctx context.Context, q ListQuery) (ListResult, error) {
	where, args := "", []any{}
	if q.RiskLevel != nil {
		where = "WHERE risk_level = $1"
		args = append(args, string(*q.RiskLevel))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit.clients `+where, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("failed to count clients: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM credit.clients %s %s LIMIT $%d OFFSET $%d`,
		clientColumns, where, orderClause(q.SortBy, q.Order), len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	items := make([]models.ClientRecord, 0, q.Limit)
	for rows.Next() {
		rec, err := scanClient(rows)
		if err != nil {
			return ListResult{}, fmt.Errorf("failed to scan client: %w", err)
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("failed to list clients: %w", err)
	}
	return ListResult{Items: items, Total: total}, nil
}

// ScanClients streams every client ordered by id
func (r *Repository) ScanClients(ctx context.Context, fn func(models.ClientRecord) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM credit.clients ORDER BY id COLLATE "C"`)
	if err != nil {
		return fmt.Errorf("failed to scan clients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanClient(rows)
		if err != nil {
			return fmt.Errorf("failed to scan client: %w", err)
		}
		if err := fn(*rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountClients returns the number of stored clients
func (r *Repository) CountClients(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit.clients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return n, nil
}

// SaveUpload records a processed upload
func (r *Repository) SaveUpload(ctx context.Context, upload *models.Upload) error {
	rejected, err := json.Marshal(upload.RejectedRows)
	if err != nil {
		return fmt.Errorf("failed to encode rejected rows: %w", err)
	}
	query := `
		INSERT INTO credit.uploads (id, file_name, checksum, uploaded_by, processed, rejected_rows, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.ExecContext(ctx, query, upload.ID, upload.FileName, upload.Checksum, upload.UploadedBy,
		upload.Processed, rejected, upload.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}

// ListUploads returns the most recent uploads first
func (r *Repository) ListUploads(ctx context.Context, limit int) ([]models.Upload, error) {
	query := `
		SELECT id, file_name, checksum, uploaded_by, processed, rejected_rows, created_at
		FROM credit.uploads
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		var (
			u        models.Upload
			rejected []byte
		)
		if err := rows.Scan(&u.ID, &u.FileName, &u.Checksum, &u.UploadedBy, &u.Processed, &rejected, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		if err := json.Unmarshal(rejected, &u.RejectedRows); err != nil {
			return nil, fmt.Errorf("failed to decode rejected rows: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// ListModelMetrics returns stored metrics of a model version
func (r *Repository) ListModelMetrics(ctx context.Context, version string) ([]models.ModelMetric, error) {
	query := `
		SELECT metric_name, dataset, metric_value, model_version
		FROM credit.model_metrics
		WHERE model_version = $1
		ORDER BY metric_name, dataset`
	rows, err := r.db.QueryContext(ctx, query, version)
	if err != nil {
		return nil, fmt.Errorf("failed to list model metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.ModelMetric
	for rows.Next() {
		var m models.ModelMetric
		if err := rows.Scan(&m.Name, &m.Dataset, &m.Value, &m.ModelVersion); err != nil {
			return nil, fmt.Errorf("failed to scan model metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*models.ClientRecord, error) {
	var (
		rec      models.ClientRecord
		age      sql.NullInt64
		gender   sql.NullString
		risk     sql.NullString
		category string
		decision string
	)
	err := row.Scan(&rec.ID, &age, &gender, &rec.City, &rec.Region, &rec.IncomeValue, &rec.IncomeReal,
		&rec.IncomePredicted, &rec.Confidence, &category, &rec.Target, &rec.AvgCurCrTurn, &rec.OvrdSum,
		&rec.LoanCurAmt, &rec.HDBIncomeRatio, &risk, &decision, &rec.Reasoning)
	if err != nil {
		return nil, err
	}
	if age.Valid {
		rec.Age = models.Int(int(age.Int64))
	}
	if gender.Valid {
		g := models.Gender(gender.String)
		rec.Gender = &g
	}
	if risk.Valid {
		l := models.RiskLevel(risk.String)
		rec.RiskLevel = &l
	}
	rec.IncomeCategory = models.IncomeCategory(category)
	rec.Recommendation = models.Recommendation(decision)
	return &rec, nil
}

// textColumns are compared bytewise like the in-memory store
var textColumns = map[string]bool{"city": true, "region": true}

func orderClause(field string, order SortOrder) string {
	col, ok := sortColumns[field]
	if !ok {
		col = "id"
	}
	dir := "DESC"
	if order == OrderAsc {
		dir = "ASC"
	}
	if col == "id" {
		return `ORDER BY id COLLATE "C" ` + dir
	}
	if textColumns[col] {
		col += ` COLLATE "C"`
	}
	return fmt.Sprintf(`ORDER BY %s %s NULLS LAST, id COLLATE "C" ASC`, col, dir)
}

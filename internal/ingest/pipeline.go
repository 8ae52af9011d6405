// Package ingest turns tabular client data into decided, stored client records.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/expiwt/AlphaHack/internal/decision"
	"github.com/expiwt/AlphaHack/internal/models"
	"github.com/expiwt/AlphaHack/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidPayload is returned when the payload as a whole cannot be read
var ErrInvalidPayload = errors.New("invalid payload")

// Result summarizes one ingestion run
type Result struct {
	Processed int                  `json:"processed_clients"`
	Rejected  []models.RejectedRow `json:"rejected_rows"`
}

// Pipeline parses, decides and upserts client rows
type Pipeline struct {
	store     repository.ClientStore
	engine    *decision.Engine
	predictor Predictor
	workers   int
	log       *logrus.Logger
}

// NewPipeline initializes a new ingestion pipeline
func NewPipeline(store repository.ClientStore, engine *decision.Engine, predictor Predictor, workers int, log *logrus.Logger) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{store: store, engine: engine, predictor: predictor, workers: workers, log: log}
}

type row struct {
	num   int // 1-based, header excluded
	rec   models.ClientRecord
	err   error
	stage string
}

// Ingest reads a CSV payload with a header row. A malformed row is recorded
// in the result and never aborts the remaining rows.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader) (Result, error) {
	rows, err := p.readRows(r)
	if err != nil {
		return Result{}, err
	}
	return p.run(ctx, rows)
}

// IngestRecords processes already-parsed records, numbering them from 1
func (p *Pipeline) IngestRecords(ctx context.Context, recs []models.ClientRecord) (Result, error) {
	rows := make([]*row, len(recs))
	for i, rec := range recs {
		rows[i] = &row{num: i + 1, rec: rec.Clone()}
		rows[i].rec.ID = parseID(rec.ID)
		if rows[i].rec.ID == "" {
			rows[i].err = fmt.Errorf("missing id")
		}
	}
	return p.run(ctx, rows)
}

func (p *Pipeline) readRows(r io.Reader) ([]*row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrInvalidPayload, err)
	}
	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []*row
	for num := 1; ; num++ {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			rows = append(rows, &row{num: num, err: fmt.Errorf("malformed row: %v", parseErr.Err)})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read row %d: %v", ErrInvalidPayload, num, err)
		}
		rec, err := parseRow(columns, cells)
		rows = append(rows, &row{num: num, rec: rec, err: err})
	}
	return rows, nil
}

func mapHeader(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		field, ok := models.CanonicalField(strings.TrimPrefix(name, "\ufeff"))
		if !ok {
			continue
		}
		if seen[field] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidPayload, name)
		}
		seen[field] = true
		columns[i] = field
	}
	if !seen[models.FieldID] {
		return nil, fmt.Errorf("%w: header has no id column", ErrInvalidPayload)
	}
	return columns, nil
}

// run processes valid rows in parallel. Rows sharing an id are handled by
// the same worker in payload order so the last row of the payload wins.
func (p *Pipeline) run(ctx context.Context, rows []*row) (Result, error) {
	groups := make(map[string][]*row)
	var order []string
	for _, rw := range rows {
		if rw.err != nil {
			continue
		}
		if _, ok := groups[rw.rec.ID]; !ok {
			order = append(order, rw.rec.ID)
		}
		groups[rw.rec.ID] = append(groups[rw.rec.ID], rw)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, id := range order {
		group := groups[id]
		g.Go(func() error {
			for _, rw := range group {
				if err := gctx.Err(); err != nil {
					rw.err = fmt.Errorf("not processed: %v", err)
					continue
				}
				rw.err = p.process(gctx, rw.rec)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Rejected: []models.RejectedRow{}}
	for _, rw := range rows {
		if rw.err != nil {
			res.Rejected = append(res.Rejected, models.RejectedRow{Row: rw.num, ID: rw.rec.ID, Reason: rw.err.Error()})
			continue
		}
		res.Processed++
	}

	p.log.WithFields(logrus.Fields{
		"rows":      len(rows),
		"processed": res.Processed,
		"rejected":  len(res.Rejected),
	}).Info("Ingestion finished")
	for _, rj := range res.Rejected {
		p.log.WithFields(logrus.Fields{"row": rj.Row, "id": rj.ID}).Debugf("Row rejected: %s", rj.Reason)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// process derives every computed field and upserts the record
func (p *Pipeline) process(ctx context.Context, rec models.ClientRecord) error {
	if rec.IncomePredicted == nil && p.predictor != nil {
		if pred, ok := p.predictor.Predict(ctx, rec); ok {
			rec.IncomePredicted = pred.Income
			if rec.Confidence == nil {
				rec.Confidence = pred.Confidence
			}
		}
	}
	if rec.IncomeValue == nil {
		switch {
		case rec.IncomeReal != nil:
			rec.IncomeValue = rec.IncomeReal
		case rec.IncomePredicted != nil:
			rec.IncomeValue = rec.IncomePredicted
		}
	}
	rec.IncomeCategory = models.CategorizeIncome(rec.IncomeValue)
	rec = p.engine.Apply(rec)

	if err := p.store.UpsertClient(ctx, rec); err != nil {
		return fmt.Errorf("failed to store client: %v", err)
	}
	return nil
}

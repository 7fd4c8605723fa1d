package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/adx-intelligence/internal/domain"
)

var ErrNotFound = errors.New("not found")

// BatchRepo is the import batch log plus the batch/date junction the upload
// tracker aggregates over.
type BatchRepo struct {
	db *sql.DB
}

func NewBatchRepo(db *sql.DB) *BatchRepo {
	return &BatchRepo{db: db}
}

func (r *BatchRepo) Create(ctx context.Context, b *domain.ImportBatch) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO import_batches (id, source_file, kind, status, byte_size, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		b.ID, b.SourceFile, string(b.Kind), b.Status, b.ByteSize)
	if err != nil {
		return fmt.Errorf("create import batch: %w", err)
	}
	return nil
}

// Finalize writes the completed counts. The batch is immutable afterward.
func (r *BatchRepo) Finalize(ctx context.Context, b *domain.ImportBatch) error {
	errJSON, err := json.Marshal(b.Errors)
	if err != nil {
		return fmt.Errorf("marshal batch errors: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE import_batches SET
			status = $2, kind = $3, rows_read = $4, rows_imported = $5,
			rows_duplicate = $6, rows_skipped = $7, byte_size = $8,
			date_start = $9, date_end = $10, distinct_creatives = $11,
			distinct_billing_ids = $12, errors = $13, completed_at = NOW()
		 WHERE id = $1`,
		b.ID, b.Status, string(b.Kind), b.RowsRead, b.RowsImported,
		b.RowsDuplicate, b.RowsSkipped, b.ByteSize, b.DateStart, b.DateEnd,
		b.DistinctCreatives, b.DistinctBillingIDs, errJSON)
	if err != nil {
		return fmt.Errorf("finalize import batch %s: %w", b.ID, err)
	}
	return nil
}

func (r *BatchRepo) MarkFailed(ctx context.Context, id, msg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE import_batches SET status = $2, error_message = $3, completed_at = NOW()
		 WHERE id = $1`,
		id, domain.BatchStatusFailed, msg)
	if err != nil {
		return fmt.Errorf("mark batch %s failed: %w", id, err)
	}
	return nil
}

// RecordDates persists how many rows a batch landed per metric date. The
// junction is what makes daily summary recomputation a pure aggregate.
func (r *BatchRepo) RecordDates(ctx context.Context, batchID string, counts map[time.Time]int) error {
	for date, n := range counts {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO import_batch_dates (batch_id, metric_date, row_count)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (batch_id, metric_date) DO UPDATE SET row_count = EXCLUDED.row_count`,
			batchID, date, n)
		if err != nil {
			return fmt.Errorf("record batch date %s: %w", date.Format("2006-01-02"), err)
		}
	}
	return nil
}

// DailyTotals aggregates every batch that landed rows for one metric date.
func (r *BatchRepo) DailyTotals(ctx context.Context, date time.Time) (uploads int, rows, bytes int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT d.batch_id),
		        COALESCE(SUM(d.row_count), 0),
		        COALESCE(SUM(b.byte_size), 0)
		 FROM import_batch_dates d
		 JOIN import_batches b ON b.id = d.batch_id
		 WHERE d.metric_date = $1`,
		date).Scan(&uploads, &rows, &bytes)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("daily totals for %s: %w", date.Format("2006-01-02"), err)
	}
	return uploads, rows, bytes, nil
}

// PriorDailyRows returns per-day row totals for the `days` dates before
// `date` (exclusive), oldest first, only for days that actually had data.
func (r *BatchRepo) PriorDailyRows(ctx context.Context, date time.Time, days int) ([]float64, error) {
	cutoff := date.AddDate(0, 0, -days)
	rows, err := r.db.QueryContext(ctx,
		`SELECT SUM(row_count) FROM import_batch_dates
		 WHERE metric_date >= $1 AND metric_date < $2
		 GROUP BY metric_date
		 ORDER BY metric_date`,
		cutoff, date)
	if err != nil {
		return nil, fmt.Errorf("prior daily rows before %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var n float64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan prior daily rows: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *BatchRepo) Get(ctx context.Context, id string) (*domain.ImportBatch, error) {
	b, err := scanBatch(r.db.QueryRowContext(ctx, selectBatchSQL+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import batch %s: %w", id, err)
	}
	return b, nil
}

const selectBatchSQL = `
	SELECT id, source_file, kind, status, rows_read, rows_imported,
	       rows_duplicate, rows_skipped, byte_size, date_start, date_end,
	       distinct_creatives, distinct_billing_ids, errors,
	       COALESCE(error_message, ''), created_at, completed_at
	FROM import_batches`

func (r *BatchRepo) ListRecent(ctx context.Context, limit int) ([]domain.ImportBatch, error) {
	rows, err := r.db.QueryContext(ctx, selectBatchSQL+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import batches: %w", err)
	}
	defer rows.Close()

	out := []domain.ImportBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import batch: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(s rowScanner) (*domain.ImportBatch, error) {
	var b domain.ImportBatch
	var kind string
	var errJSON []byte
	err := s.Scan(&b.ID, &b.SourceFile, &kind, &b.Status, &b.RowsRead,
		&b.RowsImported, &b.RowsDuplicate, &b.RowsSkipped, &b.ByteSize,
		&b.DateStart, &b.DateEnd, &b.DistinctCreatives, &b.DistinctBillingIDs,
		&errJSON, &b.ErrorMessage, &b.CreatedAt, &b.CompletedAt)
	if err != nil {
		return nil, err
	}
	b.Kind = domain.ReportKind(kind)
	b.Errors = []domain.RowError{}
	if len(errJSON) > 0 {
		if err := json.Unmarshal(errJSON, &b.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal batch errors: %w", err)
		}
	}
	return &b, nil
}

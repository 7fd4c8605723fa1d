package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/adx-intelligence/internal/domain"
)

// SummaryRepo stores the per-date upload summaries the anomaly tracker
// derives. One row per metric date, overwritten on every recompute.
type SummaryRepo struct {
	db *sql.DB
}

func NewSummaryRepo(db *sql.DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

func (r *SummaryRepo) Upsert(ctx context.Context, s *domain.DailyUploadSummary) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_upload_summary (
			metric_date, uploads, total_rows, total_bytes, avg_rows_7d,
			anomaly, anomaly_reason, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		ON CONFLICT (metric_date) DO UPDATE SET
			uploads = EXCLUDED.uploads,
			total_rows = EXCLUDED.total_rows,
			total_bytes = EXCLUDED.total_bytes,
			avg_rows_7d = EXCLUDED.avg_rows_7d,
			anomaly = EXCLUDED.anomaly,
			anomaly_reason = EXCLUDED.anomaly_reason,
			updated_at = NOW()`,
		s.Date, s.Uploads, s.TotalRows, s.TotalBytes, s.AvgRows7d,
		s.Anomaly, s.AnomalyReason)
	if err != nil {
		return fmt.Errorf("upsert daily summary %s: %w", s.Date.Format("2006-01-02"), err)
	}
	return nil
}

// ListRecent returns summaries for the trailing window, newest first.
func (r *SummaryRepo) ListRecent(ctx context.Context, days int) ([]domain.DailyUploadSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT metric_date, uploads, total_rows, total_bytes, avg_rows_7d,
		        anomaly, COALESCE(anomaly_reason, '')
		 FROM daily_upload_summary
		 WHERE metric_date >= CURRENT_DATE - $1::int
		 ORDER BY metric_date DESC`,
		days)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	defer rows.Close()

	out := []domain.DailyUploadSummary{}
	for rows.Next() {
		var s domain.DailyUploadSummary
		var avg sql.NullFloat64
		if err := rows.Scan(&s.Date, &s.Uploads, &s.TotalRows, &s.TotalBytes,
			&avg, &s.Anomaly, &s.AnomalyReason); err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		if avg.Valid {
			v := avg.Float64
			s.AvgRows7d = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

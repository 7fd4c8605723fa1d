package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/adx-intelligence/internal/domain"
)

// QualityRepo stores per-publisher invalid-traffic and viewability signals.
type QualityRepo struct {
	db *sql.DB
}

func NewQualityRepo(db *sql.DB) *QualityRepo {
	return &QualityRepo{db: db}
}

const upsertQualitySQL = `
	INSERT INTO quality_signals (
		row_hash, metric_date, publisher_id, publisher_name, country,
		impressions, ivt_credited_impressions, pre_filtered_requests,
		active_view_measurable, active_view_viewable, spend_micros,
		import_batch_id
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (row_hash) DO UPDATE SET
		impressions = EXCLUDED.impressions,
		ivt_credited_impressions = EXCLUDED.ivt_credited_impressions,
		pre_filtered_requests = EXCLUDED.pre_filtered_requests,
		active_view_measurable = EXCLUDED.active_view_measurable,
		active_view_viewable = EXCLUDED.active_view_viewable,
		spend_micros = EXCLUDED.spend_micros,
		import_batch_id = EXCLUDED.import_batch_id,
		updated_at = NOW()
	RETURNING (xmax = 0)`

func (r *QualityRepo) UpsertChunk(ctx context.Context, rows []*domain.QualityRow, batchID string) (inserted, updated int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin quality chunk: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		var fresh bool
		err := tx.QueryRowContext(ctx, upsertQualitySQL,
			row.HashKey(), row.MetricDate, row.PublisherID, row.PublisherName,
			row.Country, row.Impressions, row.IVTCreditedImpressions,
			row.PreFilteredRequests, row.ActiveViewMeasurable,
			row.ActiveViewViewable, row.SpendMicros, batchID,
		).Scan(&fresh)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert quality row: %w", err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit quality chunk: %w", err)
	}
	return inserted, updated, nil
}

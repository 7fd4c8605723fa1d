package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/adx-intelligence/internal/domain"
)

// PerformanceRepo stores creative/app detail rows. The upsert is a single
// atomic insert-or-update per row keyed on row_hash, so concurrent imports
// touching the same natural key cannot race a separate existence check.
type PerformanceRepo struct {
	db *sql.DB
}

func NewPerformanceRepo(db *sql.DB) *PerformanceRepo {
	return &PerformanceRepo{db: db}
}

const upsertPerformanceSQL = `
	INSERT INTO rtb_performance (
		row_hash, metric_date, hour, creative_id, billing_id, creative_size,
		country, platform, environment, app_id, app_name, publisher_id,
		publisher_name, deal_id, deal_name, advertiser, buyer_account_id,
		impressions, clicks, reached_queries, spend_micros,
		active_view_measurable, active_view_viewable, import_batch_id
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
	          $18,$19,$20,$21,$22,$23,$24)
	ON CONFLICT (row_hash) DO UPDATE SET
		impressions = EXCLUDED.impressions,
		clicks = EXCLUDED.clicks,
		reached_queries = EXCLUDED.reached_queries,
		spend_micros = EXCLUDED.spend_micros,
		active_view_measurable = EXCLUDED.active_view_measurable,
		active_view_viewable = EXCLUDED.active_view_viewable,
		import_batch_id = EXCLUDED.import_batch_id,
		updated_at = NOW()
	RETURNING (xmax = 0)`

// UpsertChunk writes one chunk in a single transaction and reports how many
// rows were fresh inserts vs. overwrites of an existing natural key.
func (r *PerformanceRepo) UpsertChunk(ctx context.Context, rows []*domain.PerformanceRow, batchID string) (inserted, updated int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin performance chunk: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		var fresh bool
		err := tx.QueryRowContext(ctx, upsertPerformanceSQL,
			row.HashKey(), row.MetricDate, row.Hour, row.CreativeID, row.BillingID,
			row.CreativeSize, row.Country, row.Platform, row.Environment,
			row.AppID, row.AppName, row.PublisherID, row.PublisherName,
			row.DealID, row.DealName, row.Advertiser, row.BuyerAccountID,
			row.Impressions, row.Clicks, row.ReachedQueries, row.SpendMicros,
			row.ActiveViewMeasurable, row.ActiveViewViewable, batchID,
		).Scan(&fresh)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert performance row: %w", err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit performance chunk: %w", err)
	}
	return inserted, updated, nil
}

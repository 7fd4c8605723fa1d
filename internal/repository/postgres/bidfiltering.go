package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/adx-intelligence/internal/domain"
)

// BidFilteringRepo stores bids removed before auction, keyed by reason.
type BidFilteringRepo struct {
	db *sql.DB
}

func NewBidFilteringRepo(db *sql.DB) *BidFilteringRepo {
	return &BidFilteringRepo{db: db}
}

const upsertBidFilteringSQL = `
	INSERT INTO bid_filtering (
		row_hash, metric_date, country, buyer_account_id, filtering_reason,
		creative_id, bids, filtered_bids, import_batch_id
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (row_hash) DO UPDATE SET
		bids = EXCLUDED.bids,
		filtered_bids = EXCLUDED.filtered_bids,
		import_batch_id = EXCLUDED.import_batch_id,
		updated_at = NOW()
	RETURNING (xmax = 0)`

func (r *BidFilteringRepo) UpsertChunk(ctx context.Context, rows []*domain.BidFilteringRow, batchID string) (inserted, updated int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin bid filtering chunk: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		var fresh bool
		err := tx.QueryRowContext(ctx, upsertBidFilteringSQL,
			row.HashKey(), row.MetricDate, row.Country, row.BuyerAccountID,
			row.FilteringReason, row.CreativeID, row.Bids, row.FilteredBids,
			batchID,
		).Scan(&fresh)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert bid filtering row: %w", err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit bid filtering chunk: %w", err)
	}
	return inserted, updated, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/adx-intelligence/internal/domain"
)

// FunnelRepo stores bid-funnel rows. Geo and publisher reports share the
// table; geo rows simply leave the publisher dimensions empty.
type FunnelRepo struct {
	db *sql.DB
}

func NewFunnelRepo(db *sql.DB) *FunnelRepo {
	return &FunnelRepo{db: db}
}

const upsertFunnelSQL = `
	INSERT INTO rtb_funnel (
		row_hash, metric_date, country, hour, buyer_account_id, publisher_id,
		publisher_name, platform, environment, transaction_type,
		inventory_matches, bid_requests, reached_queries, bids,
		bids_in_auction, auctions_won, impressions, spend_micros,
		import_batch_id
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	ON CONFLICT (row_hash) DO UPDATE SET
		inventory_matches = EXCLUDED.inventory_matches,
		bid_requests = EXCLUDED.bid_requests,
		reached_queries = EXCLUDED.reached_queries,
		bids = EXCLUDED.bids,
		bids_in_auction = EXCLUDED.bids_in_auction,
		auctions_won = EXCLUDED.auctions_won,
		impressions = EXCLUDED.impressions,
		spend_micros = EXCLUDED.spend_micros,
		import_batch_id = EXCLUDED.import_batch_id,
		updated_at = NOW()
	RETURNING (xmax = 0)`

func (r *FunnelRepo) UpsertChunk(ctx context.Context, rows []*domain.FunnelRow, batchID string) (inserted, updated int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin funnel chunk: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		var fresh bool
		err := tx.QueryRowContext(ctx, upsertFunnelSQL,
			row.HashKey(), row.MetricDate, row.Country, row.Hour,
			row.BuyerAccountID, row.PublisherID, row.PublisherName,
			row.Platform, row.Environment, row.TransactionType,
			row.InventoryMatches, row.BidRequests, row.ReachedQueries,
			row.Bids, row.BidsInAuction, row.AuctionsWon, row.Impressions,
			row.SpendMicros, batchID,
		).Scan(&fresh)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert funnel row: %w", err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit funnel chunk: %w", err)
	}
	return inserted, updated, nil
}

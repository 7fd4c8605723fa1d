package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Rows use empty string for an absent dimension and zero for an absent
// metric. Currency is stored as integer micros to keep aggregation exact.
//
// Each row type exposes HashKey, an MD5 digest over its natural-key
// dimension tuple. The digest is the dedup key: re-importing a corrected
// export for the same tuple overwrites metrics instead of adding rows.

const dateKeyFormat = "2006-01-02"

func hashTuple(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// PerformanceRow is one creative/app detail fact from a performance report.
type PerformanceRow struct {
	MetricDate     time.Time
	Hour           string
	CreativeID     string
	BillingID      string
	CreativeSize   string
	Country        string
	Platform       string
	Environment    string
	AppID          string
	AppName        string
	PublisherID    string
	PublisherName  string
	DealID         string
	DealName       string
	Advertiser     string
	BuyerAccountID string

	Impressions          int64
	Clicks               int64
	ReachedQueries       int64
	SpendMicros          int64
	ActiveViewMeasurable int64
	ActiveViewViewable   int64
}

func (r *PerformanceRow) HashKey() string {
	return hashTuple(
		r.MetricDate.Format(dateKeyFormat), r.Hour, r.CreativeID, r.BillingID,
		r.CreativeSize, r.Country, r.Platform, r.Environment, r.AppID,
		r.PublisherID, r.DealID, r.Advertiser, r.BuyerAccountID,
	)
}

// FunnelRow is one bid-funnel fact. Geo and publisher reports share this
// shape; geo rows leave the publisher dimensions empty.
type FunnelRow struct {
	MetricDate      time.Time
	Country         string
	Hour            string
	BuyerAccountID  string
	PublisherID     string
	PublisherName   string
	Platform        string
	Environment     string
	TransactionType string

	InventoryMatches int64
	BidRequests      int64
	ReachedQueries   int64
	Bids             int64
	BidsInAuction    int64
	AuctionsWon      int64
	Impressions      int64
	SpendMicros      int64
}

func (r *FunnelRow) HashKey() string {
	return hashTuple(
		r.MetricDate.Format(dateKeyFormat), r.Country, r.Hour,
		r.BuyerAccountID, r.PublisherID, r.Platform, r.Environment,
		r.TransactionType,
	)
}

// QualityRow carries per-publisher invalid-traffic and viewability signals.
type QualityRow struct {
	MetricDate    time.Time
	PublisherID   string
	PublisherName string
	Country       string

	Impressions            int64
	IVTCreditedImpressions int64
	PreFilteredRequests    int64
	ActiveViewMeasurable   int64
	ActiveViewViewable     int64
	SpendMicros            int64
}

func (r *QualityRow) HashKey() string {
	return hashTuple(r.MetricDate.Format(dateKeyFormat), r.PublisherID, r.Country)
}

// BidFilteringRow records bids removed before auction, grouped by reason.
type BidFilteringRow struct {
	MetricDate      time.Time
	Country         string
	BuyerAccountID  string
	FilteringReason string
	CreativeID      string

	Bids         int64
	FilteredBids int64
}

func (r *BidFilteringRow) HashKey() string {
	return hashTuple(
		r.MetricDate.Format(dateKeyFormat), r.Country, r.BuyerAccountID,
		r.FilteringReason, r.CreativeID,
	)
}

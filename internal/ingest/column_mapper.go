package ingest

import (
	"strings"

	"github.com/ignite/adx-intelligence/internal/domain"
)

// Field is a canonical column identifier. Exchange exports name the same
// column half a dozen ways across report types ("#Day", "Day", "Date"); the
// mapper folds them all onto these identifiers.
type Field string

const (
	FieldDay             Field = "day"
	FieldHour            Field = "hour"
	FieldCreativeID      Field = "creative_id"
	FieldBillingID       Field = "billing_id"
	FieldCreativeSize    Field = "creative_size"
	FieldCountry         Field = "country"
	FieldPlatform        Field = "platform"
	FieldEnvironment     Field = "environment"
	FieldAppID           Field = "app_id"
	FieldAppName         Field = "app_name"
	FieldPublisherID     Field = "publisher_id"
	FieldPublisherName   Field = "publisher_name"
	FieldDealID          Field = "deal_id"
	FieldDealName        Field = "deal_name"
	FieldAdvertiser      Field = "advertiser"
	FieldBuyerAccountID  Field = "buyer_account_id"
	FieldTransactionType Field = "transaction_type"
	FieldFilteringReason Field = "filtering_reason"

	FieldImpressions          Field = "impressions"
	FieldClicks               Field = "clicks"
	FieldReachedQueries       Field = "reached_queries"
	FieldInventoryMatches     Field = "inventory_matches"
	FieldBidRequests          Field = "bid_requests"
	FieldBids                 Field = "bids"
	FieldBidsInAuction        Field = "bids_in_auction"
	FieldAuctionsWon          Field = "auctions_won"
	FieldSpend                Field = "spend"
	FieldIVTImpressions       Field = "ivt_credited_impressions"
	FieldPreFilteredRequests  Field = "pre_filtered_requests"
	FieldActiveViewMeasurable Field = "active_view_measurable"
	FieldActiveViewViewable   Field = "active_view_viewable"
	FieldFilteredBids         Field = "filtered_bids"
)

// columnAliases maps normalized header names (lowercased, trimmed, leading
// '#' stripped) to canonical fields. Currency columns additionally match
// with their parenthetical unit suffix removed, so "Spend (buyer currency)"
// and "Spend (partner currency)" both land on FieldSpend.
var columnAliases = map[string]Field{
	"day":  FieldDay,
	"date": FieldDay,
	"hour": FieldHour,

	"creative id":   FieldCreativeID,
	"creative":      FieldCreativeID,
	"billing id":    FieldBillingID,
	"creative size": FieldCreativeSize,
	"size":          FieldCreativeSize,

	"country":           FieldCountry,
	"country/territory": FieldCountry,
	"platform":          FieldPlatform,
	"device category":   FieldPlatform,
	"environment":       FieldEnvironment,
	"inventory type":    FieldEnvironment,

	"mobile app id":   FieldAppID,
	"app id":          FieldAppID,
	"mobile app name": FieldAppName,
	"app name":        FieldAppName,

	"publisher id":   FieldPublisherID,
	"publisher name": FieldPublisherName,
	"deal id":        FieldDealID,
	"deal name":      FieldDealName,

	"advertiser":       FieldAdvertiser,
	"advertiser name":  FieldAdvertiser,
	"buyer account id": FieldBuyerAccountID,
	"buyer network id": FieldBuyerAccountID,
	"transaction type": FieldTransactionType,

	"bid filtering reason": FieldFilteringReason,
	"filtering reason":     FieldFilteringReason,

	"impressions":       FieldImpressions,
	"clicks":            FieldClicks,
	"reached queries":   FieldReachedQueries,
	"inventory matches": FieldInventoryMatches,
	"bid requests":      FieldBidRequests,
	"bids":              FieldBids,
	"bids in auction":   FieldBidsInAuction,
	"auctions won":      FieldAuctionsWon,

	"spend":   FieldSpend,
	"revenue": FieldSpend,

	"ivt credited impressions":            FieldIVTImpressions,
	"pre-filtered impressions":            FieldPreFilteredRequests,
	"pre-filtered requests":               FieldPreFilteredRequests,
	"active view measurable impressions":  FieldActiveViewMeasurable,
	"active view: measurable impressions": FieldActiveViewMeasurable,
	"active view viewable impressions":    FieldActiveViewViewable,
	"active view: viewable impressions":   FieldActiveViewViewable,

	"bids filtered": FieldFilteredBids,
	"filtered bids": FieldFilteredBids,
}

// requiredFields lists, per report kind, the canonical fields that must all
// be present for a header row to match that kind.
var requiredFields = map[domain.ReportKind][]Field{
	domain.KindBidFiltering:      {FieldDay, FieldFilteringReason},
	domain.KindQualitySignals:    {FieldDay, FieldPublisherID},
	domain.KindFunnelPublisher:   {FieldDay, FieldCountry, FieldBidRequests, FieldPublisherID},
	domain.KindFunnelGeo:         {FieldDay, FieldCountry, FieldBidRequests},
	domain.KindPerformanceDetail: {FieldDay, FieldCreativeID, FieldBillingID},
}

// requiredAnyOf lists groups where at least one member must be present.
// QualitySignals needs an actual quality metric, not just the publisher
// dimensions it shares with other reports.
var requiredAnyOf = map[domain.ReportKind][][]Field{
	domain.KindQualitySignals: {{FieldIVTImpressions, FieldPreFilteredRequests}},
}

// RequiredFields returns a copy of the kind's required field list.
func RequiredFields(kind domain.ReportKind) []Field {
	req := requiredFields[kind]
	out := make([]Field, len(req))
	copy(out, req)
	for _, group := range requiredAnyOf[kind] {
		out = append(out, group[0])
	}
	return out
}

// NormalizeHeader folds one raw header name onto its lookup form.
func NormalizeHeader(name string) string {
	s := strings.TrimSpace(name)
	s = strings.Trim(s, `"`)
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}

// MapHeader resolves a single raw header to its canonical field. Unknown
// headers return ok=false and are dropped by the caller, never an error.
func MapHeader(name string) (Field, bool) {
	key := NormalizeHeader(name)
	if f, ok := columnAliases[key]; ok {
		return f, true
	}
	// Currency columns carry a unit suffix: "Spend (buyer currency)".
	if i := strings.Index(key, "("); i > 0 {
		if f, ok := columnAliases[strings.TrimSpace(key[:i])]; ok {
			return f, true
		}
	}
	return "", false
}

// ColumnMapping binds a parsed header row to canonical fields by index.
// When a file repeats a column, the first occurrence wins.
type ColumnMapping struct {
	Index map[Field]int
	Raw   []string
}

// MapColumns maps every header in the row; unrecognized columns are ignored.
func MapColumns(header []string) *ColumnMapping {
	m := &ColumnMapping{
		Index: make(map[Field]int, len(header)),
		Raw:   header,
	}
	for i, name := range header {
		f, ok := MapHeader(name)
		if !ok {
			continue
		}
		if _, seen := m.Index[f]; !seen {
			m.Index[f] = i
		}
	}
	return m
}

func (m *ColumnMapping) Has(f Field) bool {
	_, ok := m.Index[f]
	return ok
}

// Value returns the trimmed cell for a field, or "" when the column is
// absent or the row is short.
func (m *ColumnMapping) Value(row []string, f Field) string {
	i, ok := m.Index[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

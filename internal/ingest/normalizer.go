package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/adx-intelligence/internal/domain"
)

// dateFormats are tried in order; the first successful parse wins. The
// exchange has shipped all four at one point or another.
var dateFormats = []string{"01/02/2006", "01/02/06", "2006-01-02", "02/01/2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseCount is deliberately soft: exports leave optional metric cells blank
// or garbled, and that must read as zero, not kill the row.
func parseCount(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseMicros converts a decimal currency cell to integer micros so that
// downstream aggregation never touches floating point.
func parseMicros(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 1_000_000))
}

// normalizeDeal folds the exchange's "no deal" placeholders onto empty.
func normalizeDeal(id, name string) (string, string) {
	if id == "0" {
		id = ""
	}
	if name == "(none)" {
		name = ""
	}
	return id, name
}

func requireDim(m *ColumnMapping, row []string, f Field) (string, error) {
	v := m.Value(row, f)
	if v == "" {
		return "", fmt.Errorf("missing required field %s", f)
	}
	return v, nil
}

// NormalizePerformance converts one raw performance-detail row. A bad date
// or an empty required dimension is a hard error; the caller skips the row.
func NormalizePerformance(row []string, m *ColumnMapping) (*domain.PerformanceRow, error) {
	date, err := parseDate(m.Value(row, FieldDay))
	if err != nil {
		return nil, err
	}
	creativeID, err := requireDim(m, row, FieldCreativeID)
	if err != nil {
		return nil, err
	}
	billingID, err := requireDim(m, row, FieldBillingID)
	if err != nil {
		return nil, err
	}

	dealID, dealName := normalizeDeal(m.Value(row, FieldDealID), m.Value(row, FieldDealName))

	return &domain.PerformanceRow{
		MetricDate:     date,
		Hour:           m.Value(row, FieldHour),
		CreativeID:     creativeID,
		BillingID:      billingID,
		CreativeSize:   m.Value(row, FieldCreativeSize),
		Country:        m.Value(row, FieldCountry),
		Platform:       m.Value(row, FieldPlatform),
		Environment:    m.Value(row, FieldEnvironment),
		AppID:          m.Value(row, FieldAppID),
		AppName:        m.Value(row, FieldAppName),
		PublisherID:    m.Value(row, FieldPublisherID),
		PublisherName:  m.Value(row, FieldPublisherName),
		DealID:         dealID,
		DealName:       dealName,
		Advertiser:     m.Value(row, FieldAdvertiser),
		BuyerAccountID: m.Value(row, FieldBuyerAccountID),

		Impressions:          parseCount(m.Value(row, FieldImpressions)),
		Clicks:               parseCount(m.Value(row, FieldClicks)),
		ReachedQueries:       parseCount(m.Value(row, FieldReachedQueries)),
		SpendMicros:          parseMicros(m.Value(row, FieldSpend)),
		ActiveViewMeasurable: parseCount(m.Value(row, FieldActiveViewMeasurable)),
		ActiveViewViewable:   parseCount(m.Value(row, FieldActiveViewViewable)),
	}, nil
}

// NormalizeFunnel handles both funnel kinds; publisher reports additionally
// require the publisher id.
func NormalizeFunnel(row []string, m *ColumnMapping, kind domain.ReportKind) (*domain.FunnelRow, error) {
	date, err := parseDate(m.Value(row, FieldDay))
	if err != nil {
		return nil, err
	}
	country, err := requireDim(m, row, FieldCountry)
	if err != nil {
		return nil, err
	}
	publisherID := m.Value(row, FieldPublisherID)
	if kind == domain.KindFunnelPublisher && publisherID == "" {
		return nil, fmt.Errorf("missing required field %s", FieldPublisherID)
	}

	return &domain.FunnelRow{
		MetricDate:      date,
		Country:         country,
		Hour:            m.Value(row, FieldHour),
		BuyerAccountID:  m.Value(row, FieldBuyerAccountID),
		PublisherID:     publisherID,
		PublisherName:   m.Value(row, FieldPublisherName),
		Platform:        m.Value(row, FieldPlatform),
		Environment:     m.Value(row, FieldEnvironment),
		TransactionType: m.Value(row, FieldTransactionType),

		InventoryMatches: parseCount(m.Value(row, FieldInventoryMatches)),
		BidRequests:      parseCount(m.Value(row, FieldBidRequests)),
		ReachedQueries:   parseCount(m.Value(row, FieldReachedQueries)),
		Bids:             parseCount(m.Value(row, FieldBids)),
		BidsInAuction:    parseCount(m.Value(row, FieldBidsInAuction)),
		AuctionsWon:      parseCount(m.Value(row, FieldAuctionsWon)),
		Impressions:      parseCount(m.Value(row, FieldImpressions)),
		SpendMicros:      parseMicros(m.Value(row, FieldSpend)),
	}, nil
}

func NormalizeQuality(row []string, m *ColumnMapping) (*domain.QualityRow, error) {
	date, err := parseDate(m.Value(row, FieldDay))
	if err != nil {
		return nil, err
	}
	publisherID, err := requireDim(m, row, FieldPublisherID)
	if err != nil {
		return nil, err
	}

	return &domain.QualityRow{
		MetricDate:    date,
		PublisherID:   publisherID,
		PublisherName: m.Value(row, FieldPublisherName),
		Country:       m.Value(row, FieldCountry),

		Impressions:            parseCount(m.Value(row, FieldImpressions)),
		IVTCreditedImpressions: parseCount(m.Value(row, FieldIVTImpressions)),
		PreFilteredRequests:    parseCount(m.Value(row, FieldPreFilteredRequests)),
		ActiveViewMeasurable:   parseCount(m.Value(row, FieldActiveViewMeasurable)),
		ActiveViewViewable:     parseCount(m.Value(row, FieldActiveViewViewable)),
		SpendMicros:            parseMicros(m.Value(row, FieldSpend)),
	}, nil
}

func NormalizeBidFiltering(row []string, m *ColumnMapping) (*domain.BidFilteringRow, error) {
	date, err := parseDate(m.Value(row, FieldDay))
	if err != nil {
		return nil, err
	}
	reason, err := requireDim(m, row, FieldFilteringReason)
	if err != nil {
		return nil, err
	}

	return &domain.BidFilteringRow{
		MetricDate:      date,
		Country:         m.Value(row, FieldCountry),
		BuyerAccountID:  m.Value(row, FieldBuyerAccountID),
		FilteringReason: reason,
		CreativeID:      m.Value(row, FieldCreativeID),

		Bids:         parseCount(m.Value(row, FieldBids)),
		FilteredBids: parseCount(m.Value(row, FieldFilteredBids)),
	}, nil
}

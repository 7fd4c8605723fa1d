package ingest

import (
	"testing"
	"time"

	"github.com/ignite/adx-intelligence/internal/domain"
)

func TestParseDateFormats(t *testing.T) {
	want := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []string{"01/15/2025", "01/15/25", "2025-01-15", "15/01/2025"}

	for _, in := range tests {
		got, err := parseDate(in)
		if err != nil {
			t.Errorf("parseDate(%q) error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseDate(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseDateFailures(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2025/13/45"} {
		if _, err := parseDate(in); err == nil {
			t.Errorf("parseDate(%q) expected error", in)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1,234,567", 1234567},
		{"42", 42},
		{"", 0},
		{"  ", 0},
		{"n/a", 0},
		{"12.5", 0},
	}
	for _, tt := range tests {
		if got := parseCount(tt.in); got != tt.want {
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseMicros(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1.50", 1_500_000},
		{"$2,500.25", 2_500_250_000},
		{"0.000001", 1},
		{"", 0},
		{"free", 0},
	}
	for _, tt := range tests {
		if got := parseMicros(tt.in); got != tt.want {
			t.Errorf("parseMicros(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePerformance(t *testing.T) {
	header := []string{"Day", "Creative ID", "Billing ID", "Deal ID", "Deal name", "Impressions", "Spend (buyer currency)"}
	m := MapColumns(header)

	row, err := NormalizePerformance([]string{"2025-01-01", "C1", "B1", "0", "(none)", "1,000", "12.34"}, m)
	if err != nil {
		t.Fatalf("NormalizePerformance error: %v", err)
	}
	if row.CreativeID != "C1" || row.BillingID != "B1" {
		t.Errorf("dimensions = (%s, %s), want (C1, B1)", row.CreativeID, row.BillingID)
	}
	if row.DealID != "" || row.DealName != "" {
		t.Errorf("deal placeholders not normalized: (%q, %q)", row.DealID, row.DealName)
	}
	if row.Impressions != 1000 {
		t.Errorf("impressions = %d, want 1000", row.Impressions)
	}
	if row.SpendMicros != 12_340_000 {
		t.Errorf("spend micros = %d, want 12340000", row.SpendMicros)
	}
}

func TestNormalizePerformanceHardErrors(t *testing.T) {
	header := []string{"Day", "Creative ID", "Billing ID"}
	m := MapColumns(header)

	tests := []struct {
		name string
		row  []string
	}{
		{"bad date", []string{"not-a-date", "C1", "B1"}},
		{"missing creative", []string{"2025-01-01", "", "B1"}},
		{"missing billing", []string{"2025-01-01", "C1", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizePerformance(tt.row, m); err == nil {
				t.Error("expected hard row error")
			}
		})
	}
}

func TestNormalizeFunnelPublisherRequiresPublisher(t *testing.T) {
	header := []string{"Day", "Country", "Bid requests", "Publisher ID"}
	m := MapColumns(header)

	row := []string{"2025-01-01", "US", "1000", ""}
	if _, err := NormalizeFunnel(row, m, domain.KindFunnelPublisher); err == nil {
		t.Error("publisher kind should reject empty publisher id")
	}
	got, err := NormalizeFunnel(row, m, domain.KindFunnelGeo)
	if err != nil {
		t.Fatalf("geo kind rejected row: %v", err)
	}
	if got.BidRequests != 1000 {
		t.Errorf("bid requests = %d, want 1000", got.BidRequests)
	}
}

func TestFunnelHashKeyStability(t *testing.T) {
	a := &domain.FunnelRow{
		MetricDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Country:    "US",
	}
	b := &domain.FunnelRow{
		MetricDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Country:     "US",
		BidRequests: 99999, // metrics must not affect identity
	}
	if a.HashKey() != b.HashKey() {
		t.Error("hash key changed with metric values")
	}

	c := &domain.FunnelRow{
		MetricDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Country:    "DE",
	}
	if a.HashKey() == c.HashKey() {
		t.Error("distinct dimensions produced identical hash keys")
	}
}

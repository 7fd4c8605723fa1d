package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/adx-intelligence/internal/domain"
)

// classifyOrder is the fixed match order. FunnelPublisher's required set is
// a strict superset of FunnelGeo's, so the more specific kinds go first.
var classifyOrder = []domain.ReportKind{
	domain.KindBidFiltering,
	domain.KindQualitySignals,
	domain.KindFunnelPublisher,
	domain.KindFunnelGeo,
	domain.KindPerformanceDetail,
}

// MissingColumnsError reports an unclassifiable header row: the closest
// candidate kind and exactly which canonical fields it was missing.
type MissingColumnsError struct {
	ClosestKind domain.ReportKind
	Missing     []Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("unrecognized report: missing required columns for %s: %s",
		e.ClosestKind, strings.Join(names, ", "))
}

// Classify decides which report kind a header row represents. It is pure:
// identical header sets always classify identically, regardless of column
// order or casing. Returns KindUnknown plus a *MissingColumnsError when no
// kind's required set is satisfied.
func Classify(header []string) (domain.ReportKind, error) {
	m := MapColumns(header)

	for _, kind := range classifyOrder {
		if matchesKind(m, kind) {
			return kind, nil
		}
	}

	closest, missing := closestKind(m)
	return domain.KindUnknown, &MissingColumnsError{ClosestKind: closest, Missing: missing}
}

func matchesKind(m *ColumnMapping, kind domain.ReportKind) bool {
	for _, f := range requiredFields[kind] {
		if !m.Has(f) {
			return false
		}
	}
	for _, group := range requiredAnyOf[kind] {
		any := false
		for _, f := range group {
			if m.Has(f) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

// closestKind picks the candidate with the fewest missing fields, ties
// broken by match order.
func closestKind(m *ColumnMapping) (domain.ReportKind, []Field) {
	bestKind := classifyOrder[0]
	var bestMissing []Field
	bestCount := -1

	for _, kind := range classifyOrder {
		missing := missingFor(m, kind)
		if bestCount < 0 || len(missing) < bestCount {
			bestKind, bestMissing, bestCount = kind, missing, len(missing)
		}
	}
	sort.Slice(bestMissing, func(i, j int) bool { return bestMissing[i] < bestMissing[j] })
	return bestKind, bestMissing
}

func missingFor(m *ColumnMapping, kind domain.ReportKind) []Field {
	var missing []Field
	for _, f := range requiredFields[kind] {
		if !m.Has(f) {
			missing = append(missing, f)
		}
	}
	for _, group := range requiredAnyOf[kind] {
		any := false
		for _, f := range group {
			if m.Has(f) {
				any = true
				break
			}
		}
		if !any {
			missing = append(missing, group[0])
		}
	}
	return missing
}

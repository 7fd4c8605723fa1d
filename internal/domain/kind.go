package domain

// ReportKind identifies one of the mutually-exclusive CSV report shapes the
// exchange exports. A file's kind decides which required columns apply and
// which table its rows land in.
type ReportKind string

const (
	KindPerformanceDetail ReportKind = "performance_detail"
	KindFunnelGeo         ReportKind = "funnel_geo"
	KindFunnelPublisher   ReportKind = "funnel_publisher"
	KindBidFiltering      ReportKind = "bid_filtering"
	KindQualitySignals    ReportKind = "quality_signals"
	KindUnknown           ReportKind = "unknown"
)

// ParseReportKind returns KindUnknown for anything it does not recognize,
// including the empty string.
func ParseReportKind(s string) ReportKind {
	switch ReportKind(s) {
	case KindPerformanceDetail, KindFunnelGeo, KindFunnelPublisher,
		KindBidFiltering, KindQualitySignals:
		return ReportKind(s)
	}
	return KindUnknown
}

func (k ReportKind) Valid() bool { return k != KindUnknown && k != "" }

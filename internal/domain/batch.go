package domain

import "time"

// RowError describes one skipped row. The batch keeps at most MaxRowErrors
// of them so a pathological file cannot blow up memory or response size.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// MaxRowErrors bounds the per-batch error list.
const MaxRowErrors = 50

const (
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

// ImportBatch is one file-level import attempt. Counts always satisfy
// RowsRead == RowsImported + RowsDuplicate + RowsSkipped.
type ImportBatch struct {
	ID            string     `json:"id"`
	SourceFile    string     `json:"source_file"`
	Kind          ReportKind `json:"kind"`
	Status        string     `json:"status"`
	RowsRead      int        `json:"rows_read"`
	RowsImported  int        `json:"rows_imported"`
	RowsDuplicate int        `json:"rows_duplicate"`
	RowsSkipped   int        `json:"rows_skipped"`
	ByteSize      int64      `json:"byte_size"`
	DateStart     *time.Time `json:"date_start,omitempty"`
	DateEnd       *time.Time `json:"date_end,omitempty"`

	// Distinct dimension counts, populated for performance imports.
	DistinctCreatives  int `json:"distinct_creatives"`
	DistinctBillingIDs int `json:"distinct_billing_ids"`

	Errors       []RowError `json:"errors"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// DailyUploadSummary aggregates every batch that landed rows for one metric
// date. It is derived state: recomputing it is idempotent.
type DailyUploadSummary struct {
	Date          time.Time `json:"date"`
	Uploads       int       `json:"uploads"`
	TotalRows     int64     `json:"total_rows"`
	TotalBytes    int64     `json:"total_bytes"`
	AvgRows7d     *float64  `json:"avg_rows_7d,omitempty"`
	Anomaly       bool      `json:"anomaly"`
	AnomalyReason string    `json:"anomaly_reason,omitempty"`
}

package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/domain"
	"github.com/ignite/adx-intelligence/internal/repository/postgres"
	"github.com/ignite/adx-intelligence/internal/tracking"
)

const defaultChunkSize = 1000

// Importer streams CSV rows through the normalizer and upserts them in
// fixed-size chunks. Re-importing a corrected export for the same logical
// rows overwrites metrics instead of duplicating them, so retries are safe.
type Importer struct {
	store     *postgres.Store
	tracker   *tracking.Tracker
	chunkSize int
	maxErrors int
}

func NewImporter(store *postgres.Store, tracker *tracking.Tracker, cfg config.IngestConfig) *Importer {
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	maxErrs := cfg.MaxRowErrors
	if maxErrs <= 0 || maxErrs > domain.MaxRowErrors {
		maxErrs = domain.MaxRowErrors
	}
	return &Importer{store: store, tracker: tracker, chunkSize: chunk, maxErrors: maxErrs}
}

// Import reads one CSV file. When declared is not a valid kind the header
// row is classified; an unclassifiable file is rejected wholesale before any
// table write. Row-level failures are soft: the row is skipped, counted, and
// captured in the batch's bounded error list.
//
// Counts always satisfy rows_read == imported + duplicate + skipped.
func (im *Importer) Import(ctx context.Context, r io.Reader, declared domain.ReportKind, sourceName string) (*domain.ImportBatch, error) {
	counted := &countingReader{r: r}
	cr := csv.NewReader(stripBOM(counted))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty file %s", sourceName)
		}
		return nil, fmt.Errorf("read header of %s: %w", sourceName, err)
	}

	kind := declared
	if !kind.Valid() {
		kind, err = Classify(header)
		if err != nil {
			return nil, err
		}
	}
	mapping := MapColumns(header)

	batch := &domain.ImportBatch{
		ID:         uuid.NewString(),
		SourceFile: sourceName,
		Kind:       kind,
		Status:     domain.BatchStatusProcessing,
		Errors:     []domain.RowError{},
		CreatedAt:  time.Now(),
	}
	if err := im.store.Batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	st := newImportState(kind)
	line := 1

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				batch.RowsRead++
				batch.RowsSkipped++
				im.recordRowError(batch, line, fmt.Sprintf("malformed CSV: %v", err))
				continue
			}
			return im.fail(ctx, batch, fmt.Errorf("read %s: %w", sourceName, err))
		}
		if blankRecord(record) {
			continue
		}
		batch.RowsRead++

		if err := st.add(record, mapping); err != nil {
			batch.RowsSkipped++
			im.recordRowError(batch, line, err.Error())
			continue
		}

		if st.buffered() >= im.chunkSize {
			if err := im.flush(ctx, st, batch); err != nil {
				return im.fail(ctx, batch, err)
			}
		}
	}

	if err := im.flush(ctx, st, batch); err != nil {
		return im.fail(ctx, batch, err)
	}

	batch.ByteSize = counted.n
	st.finalize(batch)
	batch.Status = domain.BatchStatusCompleted

	if err := im.store.Batches.RecordDates(ctx, batch.ID, st.dateCounts); err != nil {
		return im.fail(ctx, batch, err)
	}
	if err := im.store.Batches.Finalize(ctx, batch); err != nil {
		return im.fail(ctx, batch, err)
	}
	if err := im.tracker.RecomputeDates(ctx, st.dates()); err != nil {
		// The import itself succeeded; summaries are derived state and the
		// next import for these dates recomputes them.
		log.Printf("[ingest] recompute upload summaries after %s: %v", batch.ID, err)
	}

	log.Printf("[ingest] imported %s kind=%s read=%d imported=%d duplicate=%d skipped=%d",
		sourceName, kind, batch.RowsRead, batch.RowsImported, batch.RowsDuplicate, batch.RowsSkipped)
	return batch, nil
}

func (im *Importer) recordRowError(batch *domain.ImportBatch, line int, msg string) {
	if len(batch.Errors) < im.maxErrors {
		batch.Errors = append(batch.Errors, domain.RowError{Line: line, Message: msg})
	}
}

// fail marks the batch failed. Chunks committed before the failure stand;
// idempotent upsert makes re-running the same file safe.
func (im *Importer) fail(ctx context.Context, batch *domain.ImportBatch, err error) (*domain.ImportBatch, error) {
	batch.Status = domain.BatchStatusFailed
	batch.ErrorMessage = err.Error()
	if mErr := im.store.Batches.MarkFailed(ctx, batch.ID, err.Error()); mErr != nil {
		log.Printf("[ingest] mark batch %s failed: %v", batch.ID, mErr)
	}
	return batch, err
}

func (im *Importer) flush(ctx context.Context, st *importState, batch *domain.ImportBatch) error {
	inserted, updated, err := st.flush(ctx, im.store, batch.ID)
	if err != nil {
		return err
	}
	batch.RowsImported += inserted
	batch.RowsDuplicate += updated
	return nil
}

// importState buffers normalized rows for one kind and tracks the batch's
// observed dates and distinct dimension values.
type importState struct {
	kind domain.ReportKind

	performance  []*domain.PerformanceRow
	funnel       []*domain.FunnelRow
	quality      []*domain.QualityRow
	bidFiltering []*domain.BidFilteringRow

	dateCounts map[time.Time]int
	creatives  map[string]struct{}
	billingIDs map[string]struct{}
}

func newImportState(kind domain.ReportKind) *importState {
	return &importState{
		kind:       kind,
		dateCounts: make(map[time.Time]int),
		creatives:  make(map[string]struct{}),
		billingIDs: make(map[string]struct{}),
	}
}

func (st *importState) add(record []string, m *ColumnMapping) error {
	switch st.kind {
	case domain.KindPerformanceDetail:
		row, err := NormalizePerformance(record, m)
		if err != nil {
			return err
		}
		st.performance = append(st.performance, row)
		st.dateCounts[row.MetricDate]++
		st.creatives[row.CreativeID] = struct{}{}
		st.billingIDs[row.BillingID] = struct{}{}
	case domain.KindFunnelGeo, domain.KindFunnelPublisher:
		row, err := NormalizeFunnel(record, m, st.kind)
		if err != nil {
			return err
		}
		st.funnel = append(st.funnel, row)
		st.dateCounts[row.MetricDate]++
	case domain.KindQualitySignals:
		row, err := NormalizeQuality(record, m)
		if err != nil {
			return err
		}
		st.quality = append(st.quality, row)
		st.dateCounts[row.MetricDate]++
	case domain.KindBidFiltering:
		row, err := NormalizeBidFiltering(record, m)
		if err != nil {
			return err
		}
		st.bidFiltering = append(st.bidFiltering, row)
		st.dateCounts[row.MetricDate]++
	default:
		return fmt.Errorf("no importer for kind %s", st.kind)
	}
	return nil
}

func (st *importState) buffered() int {
	return len(st.performance) + len(st.funnel) + len(st.quality) + len(st.bidFiltering)
}

func (st *importState) flush(ctx context.Context, store *postgres.Store, batchID string) (inserted, updated int, err error) {
	switch {
	case len(st.performance) > 0:
		inserted, updated, err = store.Performance.UpsertChunk(ctx, st.performance, batchID)
		st.performance = st.performance[:0]
	case len(st.funnel) > 0:
		inserted, updated, err = store.Funnel.UpsertChunk(ctx, st.funnel, batchID)
		st.funnel = st.funnel[:0]
	case len(st.quality) > 0:
		inserted, updated, err = store.Quality.UpsertChunk(ctx, st.quality, batchID)
		st.quality = st.quality[:0]
	case len(st.bidFiltering) > 0:
		inserted, updated, err = store.BidFiltering.UpsertChunk(ctx, st.bidFiltering, batchID)
		st.bidFiltering = st.bidFiltering[:0]
	}
	return inserted, updated, err
}

func (st *importState) dates() []time.Time {
	out := make([]time.Time, 0, len(st.dateCounts))
	for d := range st.dateCounts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (st *importState) finalize(batch *domain.ImportBatch) {
	dates := st.dates()
	if len(dates) > 0 {
		start, end := dates[0], dates[len(dates)-1]
		batch.DateStart, batch.DateEnd = &start, &end
	}
	batch.DistinctCreatives = len(st.creatives)
	batch.DistinctBillingIDs = len(st.billingIDs)
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if cell != "" {
			return false
		}
	}
	return true
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// stripBOM drops a UTF-8 byte order mark if the stream starts with one.
// Exchange exports produced on Windows ship with it.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	return br
}

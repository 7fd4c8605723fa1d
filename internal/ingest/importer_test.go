package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/domain"
	"github.com/ignite/adx-intelligence/internal/repository/postgres"
	"github.com/ignite/adx-intelligence/internal/tracking"
)

func setupImporterTest(t *testing.T) (*Importer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := postgres.NewStore(db)
	cfg := config.AnalyticsConfig{
		AnomalyDropRatio:      0.5,
		AnomalySpikeRatio:     2.0,
		MinAnomalyHistoryDays: 3,
	}
	tracker := tracking.New(store, cfg)
	importer := NewImporter(store, tracker, config.IngestConfig{ChunkSize: 1000, MaxRowErrors: 50})
	return importer, mock
}

const funnelCSV = `Day,Country,Bid requests,Bids,Bids in auction,Auctions won
2025-01-01,US,1000,100,80,20
2025-01-01,DE,500,50,40,10
`

// expectFunnelImport mocks the full call sequence for a two-row funnel
// file landing on a single date. fresh controls the upsert outcome:
// true = insert, false = overwrite of an existing natural key.
func expectFunnelImport(mock sqlmock.Sqlmock, fresh bool) {
	mock.ExpectExec("INSERT INTO import_batches").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectBegin()
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("INSERT INTO rtb_funnel").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(fresh))
	}
	mock.ExpectCommit()

	mock.ExpectExec("INSERT INTO import_batch_dates").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE import_batches SET").
		WillReturnResult(sqlmock.NewResult(1, 1))

	// Summary recompute for the touched date.
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"uploads", "rows", "bytes"}).AddRow(1, 2, 120))
	mock.ExpectQuery("SELECT SUM").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}))
	mock.ExpectExec("INSERT INTO daily_upload_summary").
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestImportFunnelFile(t *testing.T) {
	importer, mock := setupImporterTest(t)
	expectFunnelImport(mock, true)

	batch, err := importer.Import(context.Background(),
		strings.NewReader(funnelCSV), domain.KindUnknown, "funnel.csv")
	require.NoError(t, err)

	require.Equal(t, domain.KindFunnelGeo, batch.Kind)
	require.Equal(t, domain.BatchStatusCompleted, batch.Status)
	require.Equal(t, 2, batch.RowsRead)
	require.Equal(t, 2, batch.RowsImported)
	require.Equal(t, 0, batch.RowsDuplicate)
	require.Equal(t, 0, batch.RowsSkipped)
	require.NotNil(t, batch.DateStart)
	require.Equal(t, "2025-01-01", batch.DateStart.Format("2006-01-02"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportSecondRunCountsDuplicates(t *testing.T) {
	importer, mock := setupImporterTest(t)
	expectFunnelImport(mock, false)

	batch, err := importer.Import(context.Background(),
		strings.NewReader(funnelCSV), domain.KindUnknown, "funnel.csv")
	require.NoError(t, err)

	require.Equal(t, 0, batch.RowsImported)
	require.Equal(t, 2, batch.RowsDuplicate)
	require.Equal(t, batch.RowsRead, batch.RowsImported+batch.RowsDuplicate+batch.RowsSkipped)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportSkipsBadRowsWithoutAborting(t *testing.T) {
	importer, mock := setupImporterTest(t)

	csvData := `Day,Country,Bid requests
2025-01-01,US,1000
not-a-date,DE,500
2025-01-01,,300
`
	mock.ExpectExec("INSERT INTO import_batches").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO rtb_funnel").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(true))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO import_batch_dates").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE import_batches SET").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"uploads", "rows", "bytes"}).AddRow(1, 1, 60))
	mock.ExpectQuery("SELECT SUM").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}))
	mock.ExpectExec("INSERT INTO daily_upload_summary").
		WillReturnResult(sqlmock.NewResult(1, 1))

	batch, err := importer.Import(context.Background(),
		strings.NewReader(csvData), domain.KindUnknown, "funnel.csv")
	require.NoError(t, err)

	require.Equal(t, 3, batch.RowsRead)
	require.Equal(t, 1, batch.RowsImported)
	require.Equal(t, 2, batch.RowsSkipped)
	require.Equal(t, batch.RowsRead, batch.RowsImported+batch.RowsDuplicate+batch.RowsSkipped)
	require.Len(t, batch.Errors, 2)
	require.Equal(t, 3, batch.Errors[0].Line)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRejectsUnclassifiableFile(t *testing.T) {
	importer, mock := setupImporterTest(t)

	batch, err := importer.Import(context.Background(),
		strings.NewReader("Foo,Bar\n1,2\n"), domain.KindUnknown, "mystery.csv")
	require.Error(t, err)
	require.Nil(t, batch)

	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)

	// No table writes may happen for a rejected file.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportEmptyFile(t *testing.T) {
	importer, mock := setupImporterTest(t)

	_, err := importer.Import(context.Background(),
		strings.NewReader(""), domain.KindUnknown, "empty.csv")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportStripsBOM(t *testing.T) {
	importer, mock := setupImporterTest(t)
	expectFunnelImport(mock, true)

	data := "\xEF\xBB\xBF" + funnelCSV
	batch, err := importer.Import(context.Background(),
		strings.NewReader(data), domain.KindUnknown, "funnel.csv")
	require.NoError(t, err)
	require.Equal(t, domain.KindFunnelGeo, batch.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportDeclaredKindSkipsClassification(t *testing.T) {
	importer, mock := setupImporterTest(t)
	expectFunnelImport(mock, true)

	batch, err := importer.Import(context.Background(),
		strings.NewReader(funnelCSV), domain.KindFunnelGeo, "funnel.csv")
	require.NoError(t, err)
	require.Equal(t, domain.KindFunnelGeo, batch.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

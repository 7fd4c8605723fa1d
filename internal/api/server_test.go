package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/adx-intelligence/internal/analytics"
	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/ingest"
	"github.com/ignite/adx-intelligence/internal/repository/postgres"
	"github.com/ignite/adx-intelligence/internal/tracking"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Redis: config.RedisConfig{ReportCacheTTL: time.Minute},
		Ingest: config.IngestConfig{
			ChunkSize:    1000,
			MaxRowErrors: 50,
		},
		Analytics: config.AnalyticsConfig{
			AnomalyDropRatio:      0.5,
			AnomalySpikeRatio:     2.0,
			MinAnomalyHistoryDays: 3,
			FraudRateThreshold:    0.05,
			MaxRecommendations:    20,
		},
	}
}

func setupServerTest(t *testing.T) (*Server, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	cfg := testConfig()
	store := postgres.NewStore(db)
	tracker := tracking.New(store, cfg.Analytics)
	importer := ingest.NewImporter(store, tracker, cfg.Ingest)
	engine := analytics.NewEngine(db, cfg.Analytics)

	srv := NewServer(cfg, db, redisClient, store, importer, engine, tracker, nil)
	return srv, mock, mr
}

func TestHealthOK(t *testing.T) {
	srv, mock, _ := setupServerTest(t)
	mock.ExpectPing()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "ok", body.Checks["redis"])
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	srv, mock, _ := setupServerTest(t)
	mock.ExpectPing().WillReturnError(assert.AnError)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}

func TestOptimizationReportCacheHit(t *testing.T) {
	srv, _, mr := setupServerTest(t)

	cached := `{"summary":{"window_days":7}}`
	require.NoError(t, mr.Set("report:optimization:7", cached))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/optimization-report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
	assert.Equal(t, cached, rec.Body.String())
}

func TestUploadTracking(t *testing.T) {
	srv, mock, _ := setupServerTest(t)

	mock.ExpectQuery("FROM daily_upload_summary").
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{
			"metric_date", "uploads", "total_rows", "total_bytes",
			"avg_rows_7d", "anomaly", "anomaly_reason",
		}).AddRow(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), 3, 120000, 4096, 110000.0, false, ""))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/upload-tracking", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Days      int               `json:"days"`
		Summaries []json.RawMessage `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 30, body.Days)
	assert.Len(t, body.Summaries, 1)
}

func TestImportRejectsUnknownHeader(t *testing.T) {
	srv, mock, _ := setupServerTest(t)

	csv := "Day,Clicks\n08/01/2026,5\n"
	req := httptest.NewRequest("POST", "/api/imports", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error          string   `json:"error"`
		ClosestKind    string   `json:"closest_kind"`
		MissingColumns []string `json:"missing_columns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ClosestKind)
	assert.NotEmpty(t, body.MissingColumns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestTriggerWithoutWatcher(t *testing.T) {
	srv, _, _ := setupServerTest(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/ingest/trigger", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListImports(t *testing.T) {
	srv, mock, _ := setupServerTest(t)

	mock.ExpectQuery("FROM import_batches").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source_name", "report_kind", "status", "rows_read",
			"rows_imported", "rows_duplicate", "rows_skipped", "byte_size",
			"date_start", "date_end", "distinct_creatives", "distinct_billing_ids",
			"errors", "error_message", "created_at", "completed_at",
		}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/imports?limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
}

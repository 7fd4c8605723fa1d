package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/adx-intelligence/internal/analytics"
	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/ingest"
	"github.com/ignite/adx-intelligence/internal/repository/postgres"
	"github.com/ignite/adx-intelligence/internal/tracking"
)

type Server struct {
	router   chi.Router
	db       *sql.DB
	redis    *redis.Client
	store    *postgres.Store
	importer *ingest.Importer
	engine   *analytics.Engine
	tracker  *tracking.Tracker
	watcher  *ingest.Watcher
	cache    *reportCache
	cfg      *config.Config
}

// NewServer wires the handlers. watcher may be nil when no ingest bucket is
// configured; redisClient may be nil to run without caching.
func NewServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client,
	store *postgres.Store, importer *ingest.Importer, engine *analytics.Engine,
	tracker *tracking.Tracker, watcher *ingest.Watcher) *Server {

	s := &Server{
		db:       db,
		redis:    redisClient,
		store:    store,
		importer: importer,
		engine:   engine,
		tracker:  tracker,
		watcher:  watcher,
		cache:    newReportCache(redisClient, cfg.Redis.ReportCacheTTL),
		cfg:      cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router = r
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

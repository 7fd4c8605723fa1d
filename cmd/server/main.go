package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/adx-intelligence/internal/analytics"
	"github.com/ignite/adx-intelligence/internal/api"
	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/ingest"
	"github.com/ignite/adx-intelligence/internal/pkg/distlock"
	"github.com/ignite/adx-intelligence/internal/repository/postgres"
	"github.com/ignite/adx-intelligence/internal/tracking"
)

func main() {
	var cfg *config.Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadFromEnv()
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	log.Println("[server] connected to database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	store := postgres.NewStore(db)
	tracker := tracking.New(store, cfg.Analytics)
	importer := ingest.NewImporter(store, tracker, cfg.Ingest)
	engine := analytics.NewEngine(db, cfg.Analytics)

	var watcher *ingest.Watcher
	if cfg.Ingest.Bucket != "" {
		lock := distlock.New(redisClient, "ingest-cycle", 10*time.Minute)
		watcher, err = ingest.NewWatcher(store, importer, lock, cfg.Ingest)
		if err != nil {
			log.Fatalf("init bucket watcher: %v", err)
		}
		watcher.Start()
		defer watcher.Stop()
		log.Printf("[server] watching bucket %s every %s", cfg.Ingest.Bucket, cfg.Ingest.PollInterval)
	} else {
		log.Println("[server] no ingest bucket configured, bucket watcher disabled")
	}

	server := api.NewServer(cfg, db, redisClient, store, importer, engine, tracker, watcher)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("[server] listening on %s", addr)
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

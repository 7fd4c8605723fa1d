// One-shot CLI import of a local CSV export, mostly used for backfills and
// for sanity-checking a file before it lands in the ingest bucket.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"

	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/domain"
	"github.com/ignite/adx-intelligence/internal/ingest"
	"github.com/ignite/adx-intelligence/internal/repository/postgres"
	"github.com/ignite/adx-intelligence/internal/tracking"
)

func main() {
	kindFlag := flag.String("kind", "", "declared report kind (default: classify from header)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: import [-kind KIND] FILE.csv")
	}
	path := flag.Arg(0)

	cfg := config.LoadFromEnv()
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	store := postgres.NewStore(db)
	tracker := tracking.New(store, cfg.Analytics)
	importer := ingest.NewImporter(store, tracker, cfg.Ingest)

	batch, err := importer.Import(context.Background(), f,
		domain.ParseReportKind(*kindFlag), filepath.Base(path))
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(batch)
}

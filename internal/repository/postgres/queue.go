package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// QueueRepo tracks bucket objects through the ingest lifecycle:
// pending -> processing -> completed/failed. The database is the source of
// truth so multiple watcher instances (or a restart) never double-import.
type QueueRepo struct {
	db *sql.DB
}

func NewQueueRepo(db *sql.DB) *QueueRepo {
	return &QueueRepo{db: db}
}

// Enqueue registers a newly discovered object. Already-known keys are
// skipped via ON CONFLICT; returns true when the key was new.
func (r *QueueRepo) Enqueue(ctx context.Context, key string, size int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ingest_queue (object_key, status, byte_size)
		 VALUES ($1, 'pending', $2)
		 ON CONFLICT (object_key) DO NOTHING`,
		key, size)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Pending returns up to limit pending keys, smallest file first so quick
// wins drain ahead of huge exports.
func (r *QueueRepo) Pending(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT object_key FROM ingest_queue
		 WHERE status = 'pending'
		 ORDER BY byte_size ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending queue: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan queue key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Claim flips a pending entry to processing. Returns false when another
// worker grabbed it first.
func (r *QueueRepo) Claim(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ingest_queue
		 SET status = 'processing', attempts = attempts + 1, started_at = NOW()
		 WHERE object_key = $1 AND status = 'pending'`,
		key)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *QueueRepo) MarkCompleted(ctx context.Context, key, batchID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ingest_queue
		 SET status = 'completed', batch_id = $2, completed_at = NOW()
		 WHERE object_key = $1`,
		key, batchID)
	if err != nil {
		return fmt.Errorf("mark %s completed: %w", key, err)
	}
	return nil
}

func (r *QueueRepo) MarkFailed(ctx context.Context, key, msg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ingest_queue
		 SET status = 'failed', error_message = $2, completed_at = NOW()
		 WHERE object_key = $1`,
		key, msg)
	if err != nil {
		return fmt.Errorf("mark %s failed: %w", key, err)
	}
	return nil
}

// ResetStuck returns crashed 'processing' entries to the queue; entries
// past the attempt limit are failed instead of looping forever.
func (r *QueueRepo) ResetStuck(ctx context.Context, maxAttempts int) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE ingest_queue SET status = 'pending'
		 WHERE status = 'processing' AND attempts < $1`, maxAttempts); err != nil {
		return fmt.Errorf("reset stuck queue entries: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE ingest_queue SET status = 'failed', error_message = 'max attempts exceeded'
		 WHERE status = 'processing' AND attempts >= $1`, maxAttempts); err != nil {
		return fmt.Errorf("fail exhausted queue entries: %w", err)
	}
	return nil
}

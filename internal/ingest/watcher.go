package ingest

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/adx-intelligence/internal/config"
	"github.com/ignite/adx-intelligence/internal/domain"
	"github.com/ignite/adx-intelligence/internal/pkg/distlock"
	"github.com/ignite/adx-intelligence/internal/repository/postgres"
)

const (
	processedPrefix  = "processed/"
	maxQueueAttempts = 3
	claimBatchSize   = 10
)

// Watcher polls an S3 bucket for new report exports, queues them in the
// database, and imports them with a bounded worker pool. Processed objects
// are archived under processed/<kind>/ and removed from the inbox so the
// next listing stays small. A Redis lock keeps multiple instances from
// running the cycle concurrently.
type Watcher struct {
	s3Client *s3.Client
	queue    *postgres.QueueRepo
	importer *Importer
	lock     *distlock.Lock
	bucket   string
	interval time.Duration
	workers  int

	ctx       context.Context
	cancel    context.CancelFunc
	running   int32
	healthy   atomic.Bool
	lastRunAt atomic.Int64
}

func NewWatcher(store *postgres.Store, importer *Importer, lock *distlock.Lock, cfg config.IngestConfig) (*Watcher, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error
	if cfg.AWSProfile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithSharedConfigProfile(cfg.AWSProfile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	w := &Watcher{
		s3Client: s3.NewFromConfig(awsCfg),
		queue:    store.Queue,
		importer: importer,
		lock:     lock,
		bucket:   cfg.Bucket,
		interval: interval,
		workers:  workers,
	}
	w.healthy.Store(true)
	return w, nil
}

func (w *Watcher) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	go func() {
		if err := w.queue.ResetStuck(w.ctx, maxQueueAttempts); err != nil {
			log.Printf("[watcher] reset stuck queue: %v", err)
		}
		w.runOnce()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runOnce()
			}
		}
	}()
}

func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) IsHealthy() bool { return w.healthy.Load() }
func (w *Watcher) IsRunning() bool { return atomic.LoadInt32(&w.running) == 1 }

func (w *Watcher) LastRunAt() time.Time {
	if ts := w.lastRunAt.Load(); ts > 0 {
		return time.Unix(ts, 0)
	}
	return time.Time{}
}

// ManualTrigger runs one discover/process cycle immediately.
func (w *Watcher) ManualTrigger() {
	go w.runOnce()
}

func (w *Watcher) runOnce() {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&w.running, 0)

	ctx := w.ctx
	release, ok, err := w.lock.TryAcquire(ctx)
	if err != nil {
		log.Printf("[watcher] acquire cycle lock: %v", err)
		return
	}
	if !ok {
		return
	}
	defer release()

	w.lastRunAt.Store(time.Now().Unix())
	w.healthy.Store(true)

	w.discover(ctx)
	w.processQueue(ctx)
}

// discover lists the bucket and queues every new non-empty CSV outside the
// archive prefix. Known keys are skipped by the queue's ON CONFLICT.
func (w *Watcher) discover(ctx context.Context) {
	paginator := s3.NewListObjectsV2Paginator(w.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(w.bucket),
	})

	queued := 0
	for paginator.HasMorePages() {
		if ctx.Err() != nil {
			return
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.Printf("[watcher] list bucket %s: %v", w.bucket, err)
			w.healthy.Store(false)
			return
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if obj.Size == nil || *obj.Size == 0 {
				continue
			}
			if strings.HasPrefix(key, processedPrefix) {
				continue
			}
			if !strings.HasSuffix(strings.ToLower(key), ".csv") {
				continue
			}
			fresh, err := w.queue.Enqueue(ctx, key, *obj.Size)
			if err != nil {
				log.Printf("[watcher] enqueue %s: %v", key, err)
				continue
			}
			if fresh {
				queued++
			}
		}
	}
	if queued > 0 {
		log.Printf("[watcher] discovered %d new files", queued)
	}
}

func (w *Watcher) processQueue(ctx context.Context) {
	keys, err := w.queue.Pending(ctx, claimBatchSize)
	if err != nil {
		log.Printf("[watcher] query queue: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	log.Printf("[watcher] processing %d queued files", len(keys))

	sem := make(chan struct{}, w.workers)
	var wg sync.WaitGroup
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(k string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := w.processObject(ctx, k); err != nil {
				log.Printf("[watcher] process %s: %v", k, err)
			}
		}(key)
	}
	wg.Wait()
}

func (w *Watcher) processObject(ctx context.Context, key string) error {
	claimed, err := w.queue.Claim(ctx, key)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	obj, err := w.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		w.queue.MarkFailed(ctx, key, fmt.Sprintf("get object: %v", err))
		return fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Body.Close()

	batch, err := w.importer.Import(ctx, obj.Body, domain.KindUnknown, key)
	if err != nil {
		w.queue.MarkFailed(ctx, key, err.Error())
		return err
	}

	if err := w.queue.MarkCompleted(ctx, key, batch.ID); err != nil {
		return err
	}
	w.archive(ctx, key, batch.Kind)

	log.Printf("[watcher] completed %s kind=%s batch=%s imported=%d duplicate=%d skipped=%d",
		key, batch.Kind, batch.ID, batch.RowsImported, batch.RowsDuplicate, batch.RowsSkipped)
	return nil
}

// archive copies the object under processed/<kind>/ and deletes the
// original. Archive failures are logged, never fatal: the queue already
// records the import and re-imports are idempotent.
func (w *Watcher) archive(ctx context.Context, key string, kind domain.ReportKind) {
	dest := processedPrefix + string(kind) + "/" + path.Base(key)
	_, err := w.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(w.bucket),
		CopySource: aws.String(w.bucket + "/" + key),
		Key:        aws.String(dest),
	})
	if err != nil {
		log.Printf("[watcher] archive copy %s -> %s: %v", key, dest, err)
		return
	}
	if _, err := w.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
	}); err != nil {
		log.Printf("[watcher] delete original %s: %v", key, err)
	}
}

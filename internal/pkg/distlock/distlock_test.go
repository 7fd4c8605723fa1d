package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupLockTest(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTryAcquireAndRelease(t *testing.T) {
	client := setupLockTest(t)
	ctx := context.Background()

	lock := New(client, "ingest-cycle", time.Minute)
	release, ok, err := lock.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	// Held locks cannot be taken again.
	if _, ok, err := lock.TryAcquire(ctx); err != nil || ok {
		t.Fatalf("second acquire: ok=%v err=%v, want deny", ok, err)
	}

	release()

	if _, ok, err := lock.TryAcquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v, want success", ok, err)
	}
}

func TestContendingLocks(t *testing.T) {
	client := setupLockTest(t)
	ctx := context.Background()

	a := New(client, "ingest-cycle", time.Minute)
	b := New(client, "ingest-cycle", time.Minute)

	releaseA, ok, err := a.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("a acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := b.TryAcquire(ctx); ok {
		t.Fatal("b acquired a lock already held by a")
	}

	releaseA()

	releaseB, ok, err := b.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("b acquire after a released: ok=%v err=%v", ok, err)
	}
	releaseB()
}

func TestIndependentNames(t *testing.T) {
	client := setupLockTest(t)
	ctx := context.Background()

	a := New(client, "cycle-a", time.Minute)
	b := New(client, "cycle-b", time.Minute)

	if _, ok, err := a.TryAcquire(ctx); err != nil || !ok {
		t.Fatalf("a: ok=%v err=%v", ok, err)
	}
	if _, ok, err := b.TryAcquire(ctx); err != nil || !ok {
		t.Fatalf("b should be independent of a: ok=%v err=%v", ok, err)
	}
}

package redis_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/repository/memory"
	"github.com/secmon-lab/riskregister/pkg/repository/redis"
)

func newCounter(t *testing.T) *redis.Counter {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	c, err := redis.New(context.Background(), addr, os.Getenv("TEST_REDIS_PASSWORD"), 0,
		redis.WithKeyPrefix("riskregister-test:"+uuid.NewString()))
	gt.NoError(t, err).Required()
	return c
}

func TestCounter_Next(t *testing.T) {
	c := newCounter(t)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	n, err := c.Next(ctx, "org-a", "OPS-FIN")
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(int64(1))

	n, err = c.Next(ctx, "org-a", "OPS-FIN")
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(int64(2))

	// prefixes and organizations count independently
	n, err = c.Next(ctx, "org-a", "CTL")
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(int64(1))
	n, err = c.Next(ctx, "org-b", "OPS-FIN")
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(int64(1))
}

func TestCounter_Concurrent(t *testing.T) {
	c := newCounter(t)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	const workers = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Next(ctx, "org-a", "KRI")
			if err != nil {
				t.Errorf("next failed: %v", err)
				return
			}
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	gt.Value(t, len(seen)).Equal(workers)
}

func TestWrap(t *testing.T) {
	c := newCounter(t)
	repo := redis.Wrap(memory.New(), c)
	t.Cleanup(func() { _ = repo.Close() })

	n, err := repo.CodeCounter().Next(context.Background(), "org-a", "OPS-FIN")
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(int64(1))
}

// Package redis provides a Redis-backed code counter. It is shared by every
// process serving the same register, so generated codes stay unique
// without a database round trip.
package redis

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
)

const defaultKeyPrefix = "riskregister:counter"

// Counter implements interfaces.CodeCounter with INCR
type Counter struct {
	client    *redis.Client
	keyPrefix string
}

var _ interfaces.CodeCounter = &Counter{}

type Option func(*Counter)

// WithKeyPrefix namespaces the counter keys
func WithKeyPrefix(prefix string) Option {
	return func(c *Counter) {
		c.keyPrefix = prefix
	}
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*Counter, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", addr))
	}

	c := &Counter{client: client, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Counter) key(orgID, prefix string) string {
	return c.keyPrefix + ":" + orgID + ":" + prefix
}

// Next atomically increments the counter of (orgID, prefix)
func (c *Counter) Next(ctx context.Context, orgID, prefix string) (int64, error) {
	n, err := c.client.Incr(ctx, c.key(orgID, prefix)).Result()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to increment code counter",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PrefixKey, prefix))
	}
	return n, nil
}

func (c *Counter) Close() error {
	return c.client.Close()
}

// repository overrides the code counter of another repository
type repository struct {
	interfaces.Repository
	counter *Counter
}

func (r *repository) CodeCounter() interfaces.CodeCounter {
	return r.counter
}

func (r *repository) Close() error {
	cerr := r.counter.Close()
	if err := r.Repository.Close(); err != nil {
		return err
	}
	return cerr
}

// Wrap returns repo with its code counter replaced by c
func Wrap(repo interfaces.Repository, c *Counter) interfaces.Repository {
	return &repository{Repository: repo, counter: c}
}

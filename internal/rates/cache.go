package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dvloznov/prioridades-pago/internal/domain"
	"github.com/dvloznov/prioridades-pago/internal/logger"
)

// DefaultCacheTTL is how long a successful quote is reused.
const DefaultCacheTTL = 30 * time.Minute

const keyPrefix = "prioridades-pago:rate:"

// ErrCacheMiss is returned by a Store when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Store is the key/value backend of CachedProvider.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// ConnectRedis parses url, connects and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ConnectRedis: parse url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ConnectRedis: ping: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// CachedProvider serves successful quotes from a Store and asks next on a
// miss. Cache failures fall through to next.
type CachedProvider struct {
	next  Provider
	store Store
	ttl   time.Duration
}

// NewCachedProvider wraps next with store.
func NewCachedProvider(next Provider, store Store, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{next: next, store: store, ttl: ttl}
}

// Quote implements Provider.
func (c *CachedProvider) Quote(ctx context.Context, pair domain.Pair) domain.RateQuote {
	log := logger.FromContext(ctx)
	key := keyPrefix + string(pair)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var q domain.RateQuote
		if jerr := json.Unmarshal([]byte(raw), &q); jerr == nil && q.Success {
			return q
		}
		log.Warn().Str("pair", string(pair)).Msg("Discarding unreadable cached rate")
	case !errors.Is(err, ErrCacheMiss):
		log.Warn().Err(err).Str("pair", string(pair)).Msg("Rate cache read failed")
	}

	q := c.next.Quote(ctx, pair)
	if !q.Success {
		return q
	}
	data, err := json.Marshal(q)
	if err != nil {
		return q
	}
	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		log.Warn().Err(err).Str("pair", string(pair)).Msg("Rate cache write failed")
	}
	return q
}

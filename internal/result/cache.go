package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "ai:result:"

// Cache is the key/value backend used by CachedStore. *pkgredis.Client
// implements it; a missing key is reported with an error for which
// pkgredis.IsNilError is true.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedStore is a read-through cache for GetByID in front of another Store.
// Records never change after creation, so entries are only dropped by TTL.
// Cache failures are logged and fall back to the underlying store.
type CachedStore struct {
	next    Store
	cache   Cache
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps next. m may be nil.
func NewCachedStore(next Store, cache Cache, ttl time.Duration, m *metrics.Metrics) *CachedStore {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &CachedStore{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("result-cache", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// Create writes through to the underlying store and warms the cache.
func (s *CachedStore) Create(ctx context.Context, rec Record) (Record, error) {
	created, err := s.next.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.set(ctx, created)
	return created, nil
}

// List always reads the underlying store.
func (s *CachedStore) List(ctx context.Context, page Page) ([]Record, error) {
	return s.next.List(ctx, page)
}

// GetByID serves from the cache when possible. Concurrent misses for the same
// id share one underlying read.
func (s *CachedStore) GetByID(ctx context.Context, id int64) (Record, error) {
	if rec, ok := s.get(ctx, id); ok {
		return rec, nil
	}
	v, err, _ := s.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		rec, err := s.next.GetByID(ctx, id)
		if err != nil {
			return Record{}, err
		}
		s.set(ctx, rec)
		return rec, nil
	})
	if err != nil {
		return Record{}, err
	}
	return v.(Record), nil
}

func (s *CachedStore) get(ctx context.Context, id int64) (Record, bool) {
	key := cacheKey(id)
	var data string
	err := s.breaker.Execute(func() error {
		var err error
		data, err = s.cache.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			s.logger.Warn("cache get failed", "key", key, "error", err)
		}
		s.miss()
		return Record{}, false
	}
	if data == "" {
		s.miss()
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		s.logger.Error("cache unmarshal failed", "key", key, "error", err)
		s.miss()
		return Record{}, false
	}
	if s.metrics != nil {
		s.metrics.CacheHitsTotal.Inc()
	}
	s.logger.Debug("cache hit", "id", id)
	return rec, true
}

func (s *CachedStore) set(ctx context.Context, rec Record) {
	key := cacheKey(rec.ID)
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = s.breaker.Execute(func() error {
		return s.cache.Set(ctx, key, data, s.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		s.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (s *CachedStore) miss() {
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.Inc()
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

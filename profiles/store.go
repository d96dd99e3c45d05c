package profiles

import (
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

// FetchDateStore remembers when each recipient's profile was last fetched.
// Entries are never evicted.
type FetchDateStore interface {
	LastFetch(recipientID string) (time.Time, bool, error)
	SetLastFetch(recipientID string, t time.Time) error
}

// MemoryFetchDateStore keeps fetch dates for the life of the process.
type MemoryFetchDateStore struct {
	mu    sync.Mutex
	dates map[string]time.Time
}

func NewMemoryFetchDateStore() *MemoryFetchDateStore {
	return &MemoryFetchDateStore{dates: make(map[string]time.Time)}
}

func (s *MemoryFetchDateStore) LastFetch(recipientID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.dates[recipientID]
	return t, ok, nil
}

func (s *MemoryFetchDateStore) SetLastFetch(recipientID string, t time.Time) error {
	s.mu.Lock()
	s.dates[recipientID] = t
	s.mu.Unlock()
	return nil
}

const redisKeyPrefix = "textsecure:profile-fetch:"

// redisClient is the part of *redis.Client the store uses.
type redisClient interface {
	Get(key string) *redis.StringCmd
	Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisFetchDateStore shares fetch dates between processes.
type RedisFetchDateStore struct {
	client redisClient
}

// NewRedisFetchDateStore connects to the redis server at addr.
func NewRedisFetchDateStore(addr string) *RedisFetchDateStore {
	return &RedisFetchDateStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *RedisFetchDateStore) LastFetch(recipientID string) (time.Time, bool, error) {
	nanos, err := s.client.Get(redisKeyPrefix + recipientID).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "read profile fetch date")
	}
	return time.Unix(0, nanos), true, nil
}

func (s *RedisFetchDateStore) SetLastFetch(recipientID string, t time.Time) error {
	err := s.client.Set(redisKeyPrefix+recipientID, t.UnixNano(), 0).Err()
	return errors.Wrap(err, "write profile fetch date")
}

// Close releases the redis connection pool.
func (s *RedisFetchDateStore) Close() error {
	return s.client.Close()
}

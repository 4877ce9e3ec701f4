package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryKV is an in-process KV implementation with the same atomicity
// semantics as RedisKV: every operation holds the store mutex for its whole
// duration, so IncrBy/SetNX/HIncrBy behave like their single-command Redis
// counterparts. Used by tests; never deployed.
type MemoryKV struct {
	mu      sync.Mutex
	strings map[string]memVal
	lists   map[string][]string
	hashes  map[string]map[string]int64
	expiry  map[string]time.Time
	now     func() time.Time
}

type memVal struct {
	v string
}

// NewMemoryKV creates an empty MemoryKV using the wall clock for expiry.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		strings: map[string]memVal{},
		lists:   map[string][]string{},
		hashes:  map[string]map[string]int64{},
		expiry:  map[string]time.Time{},
		now:     time.Now,
	}
}

// SetNowFunc overrides the time source used for ttl expiry. Test hook.
func (s *MemoryKV) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// dropExpired removes a key in any keyspace when its ttl has passed.
// Caller must hold s.mu.
func (s *MemoryKV) dropExpired(key string) {
	exp, ok := s.expiry[key]
	if !ok || s.now().Before(exp) {
		return
	}
	delete(s.strings, key)
	delete(s.lists, key)
	delete(s.hashes, key)
	delete(s.expiry, key)
}

func (s *MemoryKV) setTTL(key string, ttl time.Duration) {
	if ttl > 0 {
		s.expiry[key] = s.now().Add(ttl)
	} else {
		delete(s.expiry, key)
	}
}

func (s *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	v, ok := s.strings[key]
	if !ok {
		return "", false, nil
	}
	return v.v, true, nil
}

func (s *MemoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strings[key] = memVal{v: value}
	s.setTTL(key, ttl)
	return nil
}

func (s *MemoryKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	if _, ok := s.strings[key]; ok {
		return false, nil
	}
	s.strings[key] = memVal{v: value}
	s.setTTL(key, ttl)
	return true, nil
}

func (s *MemoryKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	cur := int64(0)
	if v, ok := s.strings[key]; ok {
		n, err := strconv.ParseInt(v.v, 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	cur += delta
	s.strings[key] = memVal{v: strconv.FormatInt(cur, 10)}
	return cur, nil
}

func (s *MemoryKV) Del(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.strings, key)
	delete(s.lists, key)
	delete(s.hashes, key)
	delete(s.expiry, key)
	return nil
}

func (s *MemoryKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, inStr := s.strings[key]
	_, inList := s.lists[key]
	_, inHash := s.hashes[key]
	if inStr || inList || inHash {
		s.setTTL(key, ttl)
	}
	return nil
}

func (s *MemoryKV) LPush(ctx context.Context, key string, values ...string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	l := s.lists[key]
	for _, v := range values {
		l = append([]string{v}, l...)
	}
	s.lists[key] = l
	return nil
}

func (s *MemoryKV) LTrim(ctx context.Context, key string, start, stop int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	l, ok := s.lists[key]
	if !ok {
		return nil
	}
	n := int64(len(l))
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		delete(s.lists, key)
		return nil
	}
	s.lists[key] = append([]string(nil), l[start:stop+1]...)
	return nil
}

func (s *MemoryKV) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	l, ok := s.lists[key]
	if !ok {
		return nil, nil
	}
	n := int64(len(l))
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}
	return append([]string(nil), l[start:stop+1]...), nil
}

func (s *MemoryKV) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	h, ok := s.hashes[key]
	if !ok {
		h = map[string]int64{}
		s.hashes[key] = h
	}
	h[field] += delta
	return h[field], nil
}

func (s *MemoryKV) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(key)
	out := map[string]string{}
	for f, v := range s.hashes[key] {
		out[f] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

func (s *MemoryKV) Ping(ctx context.Context) error { _ = ctx; return nil }

func (s *MemoryKV) Close() error { return nil }

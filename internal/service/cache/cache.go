package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "VoltX/pkg/cache"
)

// BytesCache stores rendered API payloads.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// Store puts BytesCache over a key/value service. Calls are bounded by a short
// timeout so a slow Redis degrades to a cache miss instead of a slow response.
type Store struct {
	svc     pkgcache.Service
	prefix  string
	timeout time.Duration
}

var _ BytesCache = (*Store)(nil)

func New(svc pkgcache.Service, prefix string) *Store {
	return &Store{svc: svc, prefix: prefix, timeout: 250 * time.Millisecond}
}

func (s *Store) GetBytes(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	v, err := s.svc.Get(ctx, s.prefix+key)
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (s *Store) SetBytes(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.svc.Set(ctx, s.prefix+key, string(value), ttl)
}

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	key      string
	value    string
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache is a bounded in-process Service with least-recently-used
// eviction. Expired entries are dropped when read or evicted.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List // front is most recent
	now     func() time.Time
}

var _ Service = (*MemoryCache)(nil)

func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

func (mc *MemoryCache) Get(_ context.Context, key string) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	el, ok := mc.items[key]
	if !ok {
		return "", ErrCacheMiss
	}
	it := el.Value.(*memoryItem)
	if it.expired(mc.now()) {
		mc.remove(el)
		return "", ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	return it.value, nil
}

func (mc *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = mc.now().Add(ttl)
	}
	if el, ok := mc.items[key]; ok {
		it := el.Value.(*memoryItem)
		it.value, it.expireAt = value, exp
		mc.order.MoveToFront(el)
		return nil
	}
	for mc.order.Len() >= mc.maxSize {
		mc.remove(mc.order.Back())
	}
	mc.items[key] = mc.order.PushFront(&memoryItem{key: key, value: value, expireAt: exp})
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) remove(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryItem).key)
}

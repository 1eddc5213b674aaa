package utils

import "github.com/puzpuzpuz/xsync/v3"

// CMap is a typed concurrent map. Wraps xsync.MapOf so callers
// never deal with the zero-value-vs-missing ambiguity of sync.Map.
type CMap[K comparable, V any] struct {
	m *xsync.MapOf[K, V]
}

func NewCMap[K comparable, V any]() *CMap[K, V] {
	return &CMap[K, V]{m: xsync.NewMapOf[K, V]()}
}

func (c *CMap[K, V]) Load(key K) (value V, ok bool) {
	return c.m.Load(key)
}

func (c *CMap[K, V]) Store(key K, value V) {
	c.m.Store(key, value)
}

func (c *CMap[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	return c.m.LoadOrStore(key, value)
}

func (c *CMap[K, V]) LoadAndDelete(key K) (value V, loaded bool) {
	return c.m.LoadAndDelete(key)
}

func (c *CMap[K, V]) Delete(key K) {
	c.m.Delete(key)
}

func (c *CMap[K, V]) Range(f func(key K, value V) bool) {
	c.m.Range(f)
}

func (c *CMap[K, V]) Size() int {
	return c.m.Size()
}

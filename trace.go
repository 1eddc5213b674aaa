package memdex

import (
	"sync"

	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"
)

// TraceEntry is one observed index change.
type TraceEntry struct {
	Index  string
	Change Change
}

// ChangeTrace keeps the most recent change per (index, key) in a
// bounded cache for inspection while debugging. It records tentative
// mutations as they happen; rollbacks are not re-emitted by the
// indexes and therefore not traced.
type ChangeTrace struct {
	mu      sync.Mutex
	cache   *lru.Cache[uint64, TraceEntry]
	handles map[*UniqueIndex]*ChangeHandler
}

func NewChangeTrace(size int) *ChangeTrace {
	cache, _ := lru.New[uint64, TraceEntry](size)
	return &ChangeTrace{
		cache:   cache,
		handles: make(map[*UniqueIndex]*ChangeHandler),
	}
}

func traceKey(index string, key Key) uint64 {
	h := xxhash.Sum64String(index)
	if key != nil {
		h ^= key.Hash()
	}
	return h
}

// Watch subscribes the trace to an index's change feed.
func (tr *ChangeTrace) Watch(ix *UniqueIndex) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.handles[ix]; ok {
		return
	}
	name := ix.Name()
	h := ChangeHandler(func(c Change) error {
		key := c.Curr
		if key == nil {
			key = c.Prev
		}
		tr.cache.Add(traceKey(name, key), TraceEntry{Index: name, Change: c})
		return nil
	})
	tr.handles[ix] = &h
	ix.OnChange(&h)
}

func (tr *ChangeTrace) Unwatch(ix *UniqueIndex) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if h, ok := tr.handles[ix]; ok {
		ix.Unsubscribe(h)
		delete(tr.handles, ix)
	}
}

// Last returns the most recent change recorded for the key.
func (tr *ChangeTrace) Last(index string, key Key) (TraceEntry, bool) {
	return tr.cache.Get(traceKey(index, key))
}

// Recent lists traced changes, oldest first.
func (tr *ChangeTrace) Recent() []TraceEntry {
	return tr.cache.Values()
}

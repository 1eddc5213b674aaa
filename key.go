package memdex

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash"
)

// Key is an opaque index key. Keys are heterogeneous (scalar, tuple,
// string), so the engine never bakes a key type in; it only requires
// value equality and a stable hash. Two equal keys must hash alike.
type Key interface {
	Hash() uint64
	Equal(other Key) bool
	String() string
}

type StringKey string

func (k StringKey) Hash() uint64 {
	return xxhash.Sum64String(string(k))
}

func (k StringKey) Equal(other Key) bool {
	o, ok := other.(StringKey)
	return ok && o == k
}

func (k StringKey) String() string {
	return string(k)
}

type IntKey int64

func (k IntKey) Hash() uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(k))
	return xxhash.Sum64(buf[:])
}

func (k IntKey) Equal(other Key) bool {
	o, ok := other.(IntKey)
	return ok && o == k
}

func (k IntKey) String() string {
	return fmt.Sprintf("%d", int64(k))
}

// Tuple is a composite key. Member order is significant.
type Tuple []Key

func (k Tuple) Hash() uint64 {
	buf := make([]byte, 0, len(k)*8)
	for _, m := range k {
		buf = binary.BigEndian.AppendUint64(buf, m.Hash())
	}
	return xxhash.Sum64(buf)
}

func (k Tuple) Equal(other Key) bool {
	o, ok := other.(Tuple)
	if !ok || len(o) != len(k) {
		return false
	}
	for i := range k {
		if !k[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

func (k Tuple) String() string {
	parts := make([]string, len(k))
	for i, m := range k {
		parts[i] = m.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

type kentry[V any] struct {
	key Key
	val V
}

// kmap stores entries bucketed by key hash, probing by Equal within a
// bucket, so tuple and scalar keys coexist in one index.
type kmap[V any] struct {
	buckets map[uint64][]kentry[V]
	count   int
}

func newKmap[V any]() kmap[V] {
	return kmap[V]{buckets: make(map[uint64][]kentry[V])}
}

func (m *kmap[V]) get(key Key) (val V, ok bool) {
	for _, e := range m.buckets[key.Hash()] {
		if e.key.Equal(key) {
			return e.val, true
		}
	}
	return val, false
}

func (m *kmap[V]) put(key Key, val V) {
	h := key.Hash()
	bucket := m.buckets[h]
	for i := range bucket {
		if bucket[i].key.Equal(key) {
			bucket[i].val = val
			return
		}
	}
	m.buckets[h] = append(bucket, kentry[V]{key: key, val: val})
	m.count++
}

func (m *kmap[V]) del(key Key) bool {
	h := key.Hash()
	bucket := m.buckets[h]
	for i := range bucket {
		if bucket[i].key.Equal(key) {
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			if len(bucket) == 0 {
				delete(m.buckets, h)
			} else {
				m.buckets[h] = bucket
			}
			m.count--
			return true
		}
	}
	return false
}

func (m *kmap[V]) len() int {
	return m.count
}

func (m *kmap[V]) all(yield func(Key, V) bool) {
	for _, bucket := range m.buckets {
		for _, e := range bucket {
			if !yield(e.key, e.val) {
				return
			}
		}
	}
}

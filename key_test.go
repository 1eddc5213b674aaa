package memdex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyEquality(t *testing.T) {
	assert.True(t, StringKey("a").Equal(StringKey("a")))
	assert.False(t, StringKey("a").Equal(StringKey("b")))
	assert.False(t, StringKey("1").Equal(IntKey(1)))

	assert.True(t, IntKey(7).Equal(IntKey(7)))
	assert.Equal(t, IntKey(7).Hash(), IntKey(7).Hash())

	ab := Tuple{StringKey("a"), IntKey(1)}
	assert.True(t, ab.Equal(Tuple{StringKey("a"), IntKey(1)}))
	assert.False(t, ab.Equal(Tuple{IntKey(1), StringKey("a")}))
	assert.False(t, ab.Equal(Tuple{StringKey("a")}))
	assert.Equal(t, "(a,1)", ab.String())
}

// clashKey forces hash collisions to prove buckets probe by equality.
type clashKey int

func (k clashKey) Hash() uint64 { return 42 }

func (k clashKey) Equal(other Key) bool {
	o, ok := other.(clashKey)
	return ok && o == k
}

func (k clashKey) String() string { return "clash" }

func TestKmapCollisions(t *testing.T) {
	m := newKmap[int]()
	m.put(clashKey(1), 10)
	m.put(clashKey(2), 20)

	v, ok := m.get(clashKey(1))
	require.True(t, ok)
	assert.Equal(t, 10, v)
	v, ok = m.get(clashKey(2))
	require.True(t, ok)
	assert.Equal(t, 20, v)
	assert.Equal(t, 2, m.len())

	assert.True(t, m.del(clashKey(1)))
	_, ok = m.get(clashKey(1))
	assert.False(t, ok)
	v, ok = m.get(clashKey(2))
	require.True(t, ok)
	assert.Equal(t, 20, v)

	m.put(clashKey(2), 21)
	v, _ = m.get(clashKey(2))
	assert.Equal(t, 21, v)
	assert.Equal(t, 1, m.len())
}

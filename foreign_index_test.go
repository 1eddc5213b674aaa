package memdex

import (
	"testing"

	"github.com/drpcorg/memdex/memdex_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T) (*UniqueIndex, *ForeignIndex) {
	t.Helper()
	pk := NewUniqueIndex("pk").HasIndex(idKey)
	fk := NewForeignIndex("fk", pk).HasIndex(refKey).HasFilter(refSet)
	return pk, fk
}

func TestForeignIndexAddAndChildren(t *testing.T) {
	pk, fk := fixture(t)

	parent := newTestRow(7, 0)
	require.NoError(t, pk.Add(parent))

	c1 := newTestRow(100, 7)
	c2 := newTestRow(101, 7)
	require.NoError(t, fk.Add(c1))
	require.NoError(t, fk.Add(c2))

	children, err := fk.Children(parent)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Row{c1, c2}, children)

	got, ok := fk.Parent(c1)
	assert.True(t, ok)
	assert.Same(t, parent, got)
	assert.True(t, fk.HasParent(c1))
}

func TestForeignIndexMissingParent(t *testing.T) {
	_, fk := fixture(t)
	err := fk.Add(newTestRow(100, 7))
	assert.ErrorIs(t, err, memdex_errors.ErrMissingParentKey)
}

func TestForeignIndexDuplicateChild(t *testing.T) {
	pk, fk := fixture(t)
	require.NoError(t, pk.Add(newTestRow(7, 0)))

	c := newTestRow(100, 7)
	require.NoError(t, fk.Add(c))
	assert.ErrorIs(t, fk.Add(c), memdex_errors.ErrDuplicateKey)
}

func TestForeignIndexFilterKeepsUnassignedOut(t *testing.T) {
	pk, fk := fixture(t)
	require.NoError(t, pk.Add(newTestRow(7, 0)))

	unassigned := newTestRow(100, 0)
	require.NoError(t, fk.Add(unassigned))
	assert.True(t, fk.HasParent(unassigned), "filtered rows count as parented")
}

func TestForeignIndexRemoveDropsEmptyBucket(t *testing.T) {
	pk, fk := fixture(t)
	parent := newTestRow(7, 0)
	require.NoError(t, pk.Add(parent))

	c := newTestRow(100, 7)
	require.NoError(t, fk.Add(c))
	require.NoError(t, fk.Remove(c))

	children, err := fk.Children(parent)
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, 0, fk.buckets.len())

	// silent miss
	require.NoError(t, fk.Remove(newTestRow(101, 7)))
}

func TestForeignIndexUpdateMovesBuckets(t *testing.T) {
	pk, fk := fixture(t)
	p7 := newTestRow(7, 0)
	p8 := newTestRow(8, 0)
	require.NoError(t, pk.Add(p7))
	require.NoError(t, pk.Add(p8))

	c := newTestRow(100, 7)
	require.NoError(t, fk.Add(c))
	fk.Commit()

	c.setRef(8)
	require.NoError(t, fk.Update(c))

	from, err := fk.Children(p7)
	require.NoError(t, err)
	assert.Empty(t, from)
	to, err := fk.Children(p8)
	require.NoError(t, err)
	assert.Equal(t, []Row{c}, to)
}

func TestForeignIndexUpdateToMissingParent(t *testing.T) {
	pk, fk := fixture(t)
	require.NoError(t, pk.Add(newTestRow(7, 0)))

	c := newTestRow(100, 7)
	require.NoError(t, fk.Add(c))
	fk.Commit()

	c.setRef(9)
	assert.ErrorIs(t, fk.Update(c), memdex_errors.ErrMissingParentKey)
}

func TestParentDeleteWithChildrenVetoed(t *testing.T) {
	pk, fk := fixture(t)
	parent := newTestRow(7, 0)
	require.NoError(t, pk.Add(parent))
	child := newTestRow(100, 7)
	require.NoError(t, fk.Add(child))
	pk.Commit()
	fk.Commit()

	err := pk.Remove(parent)
	assert.ErrorIs(t, err, memdex_errors.ErrConstraintViolation)
	pk.Rollback()
	fk.Rollback()

	found, ok := pk.Find(IntKey(7))
	assert.True(t, ok)
	assert.Same(t, parent, found)
	children, err := fk.Children(parent)
	require.NoError(t, err)
	assert.Equal(t, []Row{child}, children)
}

func TestParentRekeyWithChildrenVetoed(t *testing.T) {
	pk, fk := fixture(t)
	parent := newTestRow(7, 0)
	require.NoError(t, pk.Add(parent))
	require.NoError(t, fk.Add(newTestRow(100, 7)))
	pk.Commit()
	fk.Commit()

	parent.setId(9)
	err := pk.Update(parent)
	assert.ErrorIs(t, err, memdex_errors.ErrConstraintViolation)
	pk.Rollback()
	parent.Rollback()
	assert.True(t, pk.Contains(IntKey(7)))
}

func TestParentDeleteWithoutChildren(t *testing.T) {
	pk, fk := fixture(t)
	parent := newTestRow(7, 0)
	require.NoError(t, pk.Add(parent))
	child := newTestRow(100, 7)
	require.NoError(t, fk.Add(child))
	require.NoError(t, fk.Remove(child))

	require.NoError(t, pk.Remove(parent))
	assert.False(t, pk.Contains(IntKey(7)))
}

func TestForeignIndexRollback(t *testing.T) {
	pk, fk := fixture(t)
	parent := newTestRow(7, 0)
	require.NoError(t, pk.Add(parent))
	kept := newTestRow(100, 7)
	require.NoError(t, fk.Add(kept))
	pk.Commit()
	fk.Commit()

	require.NoError(t, fk.Add(newTestRow(101, 7)))
	require.NoError(t, fk.Remove(kept))
	fk.Rollback()

	children, err := fk.Children(parent)
	require.NoError(t, err)
	assert.Equal(t, []Row{kept}, children)
}

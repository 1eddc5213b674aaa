package memdex

import (
	"testing"

	"github.com/drpcorg/memdex/locks"
	"github.com/drpcorg/memdex/memdex_errors"
	"github.com/stretchr/testify/assert"
)

// testRow is the minimal generated-row stand-in used across the
// index and scope tests: an id (primary key) and a ref (foreign key,
// zero means unassigned).
type testRow struct {
	locks.RWLock

	id  int64
	ref int64

	orig  *testRow
	prev  *testRow
	dirty bool
}

func newTestRow(id, ref int64) *testRow {
	r := &testRow{id: id, ref: ref}
	r.orig = r.copy()
	r.prev = r.copy()
	return r
}

func (r *testRow) copy() *testRow {
	return &testRow{id: r.id, ref: r.ref}
}

func (r *testRow) stage() {
	if !r.dirty {
		r.prev = r.copy()
		r.dirty = true
	}
}

func (r *testRow) setId(id int64) {
	r.stage()
	r.id = id
}

func (r *testRow) setRef(ref int64) {
	r.stage()
	r.ref = ref
}

func (r *testRow) Field(name string) any {
	switch name {
	case "id":
		return r.id
	case "ref":
		return r.ref
	}
	return nil
}

func (r *testRow) Version(v RowVersion) Row {
	switch v {
	case VersionOriginal:
		if r.orig == nil {
			return nil
		}
		return r.orig
	case VersionPrevious:
		if r.prev == nil {
			return nil
		}
		return r.prev
	}
	return r
}

func (r *testRow) Prepare() (Vote, error) {
	if !r.dirty {
		return VoteDone, nil
	}
	return VotePrepared, nil
}

func (r *testRow) Commit() {
	r.dirty = false
	r.prev = r.copy()
}

func (r *testRow) Rollback() {
	if r.dirty {
		r.id = r.prev.id
		r.ref = r.prev.ref
		r.dirty = false
	}
}

func (r *testRow) InDoubt() {
	panic(memdex_errors.ErrInDoubt)
}

func idKey(r Row) Key {
	return IntKey(r.(*testRow).id)
}

func refKey(r Row) Key {
	return IntKey(r.(*testRow).ref)
}

func refSet(r Row) bool {
	return r.(*testRow).ref != 0
}

func TestRowVersions(t *testing.T) {
	r := newTestRow(10, 0)
	r.setId(11)

	assert.Equal(t, int64(11), r.Version(VersionCurrent).Field("id"))
	assert.Equal(t, int64(10), r.Version(VersionPrevious).Field("id"))
	assert.Equal(t, int64(10), r.Version(VersionOriginal).Field("id"))

	r.Commit()
	assert.Equal(t, int64(11), r.Version(VersionPrevious).Field("id"))
	assert.Equal(t, int64(10), r.Version(VersionOriginal).Field("id"))

	r.setId(12)
	r.Rollback()
	assert.Equal(t, int64(11), r.id)
}

package memdex

import (
	"iter"

	"github.com/drpcorg/memdex/locks"
	"github.com/drpcorg/memdex/memdex_errors"
	"github.com/pkg/errors"
)

// KeyFunc derives the indexed key from a row.
type KeyFunc func(Row) Key

// FilterFunc gates a row's presence in an index. The usual filter is
// a null-key test on optional columns.
type FilterFunc func(Row) bool

// UniqueIndex maps a key to a single row, the in-memory analogue of a
// primary key. Mutations push undo records and synchronously notify
// dependent foreign indexes; the index participates in two-phase
// commit through the enclosing transaction scope.
//
// Operations assume the caller holds the index lock through a Scope.
type UniqueIndex struct {
	locks.RWLock

	name   string
	key    KeyFunc
	filter FilterFunc
	rows   kmap[Row]
	undo   undoStack
	feed   changeFeed
}

func NewUniqueIndex(name string) *UniqueIndex {
	return &UniqueIndex{
		name:   name,
		filter: func(Row) bool { return true },
		rows:   newKmap[Row](),
	}
}

// HasIndex registers the key function. Using the index before a key
// function is set fails.
func (ix *UniqueIndex) HasIndex(fn KeyFunc) *UniqueIndex {
	ix.key = fn
	return ix
}

// HasFilter replaces the admit-everything default.
func (ix *UniqueIndex) HasFilter(fn FilterFunc) *UniqueIndex {
	ix.filter = fn
	return ix
}

func (ix *UniqueIndex) Name() string {
	return ix.name
}

// OnChange subscribes a handler to this index's change feed.
func (ix *UniqueIndex) OnChange(h *ChangeHandler) {
	ix.feed.subscribe(h)
}

func (ix *UniqueIndex) Unsubscribe(h *ChangeHandler) {
	ix.feed.unsubscribe(h)
}

// KeyOf returns the row's indexed key.
func (ix *UniqueIndex) KeyOf(row Row) (Key, error) {
	if ix.key == nil {
		return nil, errors.Wrap(memdex_errors.ErrNoKeyFunc, ix.name)
	}
	return ix.key(row), nil
}

// Add inserts the row under its key. The filter may exclude the row,
// which is not an error. A key collision is.
func (ix *UniqueIndex) Add(row Row) error {
	if !ix.filter(row) {
		return nil
	}
	key, err := ix.KeyOf(row)
	if err != nil {
		return err
	}
	if _, ok := ix.rows.get(key); ok {
		return errors.Wrapf(memdex_errors.ErrDuplicateKey, "index %s, key %s", ix.name, key)
	}
	ix.rows.put(key, row)
	ix.undo.push(undoRec{op: undoDelKey, key: key})
	IndexOpCount.WithLabelValues(ix.name, "add").Inc()
	return ix.feed.emit(Change{Action: ChangeAdd, Curr: key})
}

// Remove deletes the row's key. A key that is not present is a silent
// miss. Dependent foreign indexes may veto the removal; the undo for
// it is on the stack either way, so the outer scope rolls it back.
func (ix *UniqueIndex) Remove(row Row) error {
	if !ix.filter(row) {
		return nil
	}
	key, err := ix.KeyOf(row)
	if err != nil {
		return err
	}
	held, ok := ix.rows.get(key)
	if !ok {
		return nil
	}
	ix.rows.del(key)
	ix.undo.push(undoRec{op: undoPutRow, key: key, row: held})
	IndexOpCount.WithLabelValues(ix.name, "remove").Inc()
	return ix.feed.emit(Change{Action: ChangeDelete, Prev: key})
}

// Update re-keys the row when its key changed between the Previous
// and Current versions. Each side is filter-gated independently.
func (ix *UniqueIndex) Update(row Row) error {
	prev := row.Version(VersionPrevious)
	if prev == nil {
		return errors.Wrap(memdex_errors.ErrNoVersion, ix.name)
	}
	prevIn := ix.filter(prev)
	currIn := ix.filter(row)
	if !prevIn && !currIn {
		return nil
	}
	var prevKey, currKey Key
	var err error
	if prevIn {
		if prevKey, err = ix.KeyOf(prev); err != nil {
			return err
		}
	}
	if currIn {
		if currKey, err = ix.KeyOf(row); err != nil {
			return err
		}
	}
	if prevIn && currIn && prevKey.Equal(currKey) {
		return nil
	}
	if prevIn {
		if held, ok := ix.rows.get(prevKey); ok {
			ix.rows.del(prevKey)
			ix.undo.push(undoRec{op: undoPutRow, key: prevKey, row: held})
		}
	}
	if currIn {
		if _, ok := ix.rows.get(currKey); ok {
			return errors.Wrapf(memdex_errors.ErrDuplicateKey, "index %s, key %s", ix.name, currKey)
		}
		ix.rows.put(currKey, row)
		ix.undo.push(undoRec{op: undoDelKey, key: currKey})
	}
	IndexOpCount.WithLabelValues(ix.name, "update").Inc()
	return ix.feed.emit(Change{Action: ChangeUpdate, Prev: prevKey, Curr: currKey})
}

func (ix *UniqueIndex) Contains(key Key) bool {
	_, ok := ix.rows.get(key)
	return ok
}

func (ix *UniqueIndex) Find(key Key) (Row, bool) {
	return ix.rows.get(key)
}

// MustFind is the find-by-key variant that must succeed.
func (ix *UniqueIndex) MustFind(key Key) (Row, error) {
	row, ok := ix.rows.get(key)
	if !ok {
		return nil, errors.Wrapf(memdex_errors.ErrRecordNotFound, "index %s, key %s", ix.name, key)
	}
	return row, nil
}

func (ix *UniqueIndex) Len() int {
	return ix.rows.len()
}

// All iterates the index in no particular order.
func (ix *UniqueIndex) All() iter.Seq2[Key, Row] {
	return ix.rows.all
}

// Prepare votes read-only when no mutations happened under this index.
func (ix *UniqueIndex) Prepare() (Vote, error) {
	if ix.undo.empty() {
		return VoteDone, nil
	}
	return VotePrepared, nil
}

func (ix *UniqueIndex) Commit() {
	ix.undo.clear()
}

// Rollback drains the undo stack in LIFO order. It does not re-emit
// changes: every participant undoes its own state.
func (ix *UniqueIndex) Rollback() {
	ix.undo.drain(func(rec undoRec) {
		switch rec.op {
		case undoDelKey:
			ix.rows.del(rec.key)
		case undoPutRow:
			ix.rows.put(rec.key, rec.row)
		}
	})
}

func (ix *UniqueIndex) InDoubt() {
	panic(memdex_errors.ErrInDoubt)
}

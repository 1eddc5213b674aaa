package memdex

import (
	"github.com/drpcorg/memdex/locks"
	"github.com/drpcorg/memdex/memdex_errors"
	"github.com/pkg/errors"
)

// ForeignIndex maps a key to the set of child rows referencing it.
// Every bucket key must exist in the parent unique index; the index
// subscribes to the parent's change feed and vetoes any parent
// mutation that would orphan children.
//
// Operations assume the caller holds the index lock through a Scope.
type ForeignIndex struct {
	locks.RWLock

	name    string
	parent  *UniqueIndex
	key     KeyFunc
	filter  FilterFunc
	buckets kmap[[]Row]
	undo    undoStack
	guard   ChangeHandler
}

func NewForeignIndex(name string, parent *UniqueIndex) *ForeignIndex {
	fx := &ForeignIndex{
		name:    name,
		parent:  parent,
		filter:  func(Row) bool { return true },
		buckets: newKmap[[]Row](),
	}
	fx.guard = fx.onParentChange
	parent.OnChange(&fx.guard)
	return fx
}

func (fx *ForeignIndex) HasIndex(fn KeyFunc) *ForeignIndex {
	fx.key = fn
	return fx
}

func (fx *ForeignIndex) HasFilter(fn FilterFunc) *ForeignIndex {
	fx.filter = fn
	return fx
}

func (fx *ForeignIndex) Name() string {
	return fx.name
}

// onParentChange vetoes parent deletes and re-keys while children
// still reference the departing key. The veto surfaces inside the
// parent's mutating call, whose undo the outer scope then rolls back.
func (fx *ForeignIndex) onParentChange(c Change) error {
	if c.Action != ChangeDelete && c.Action != ChangeUpdate {
		return nil
	}
	if c.Prev == nil {
		return nil
	}
	if rows, ok := fx.buckets.get(c.Prev); ok && len(rows) > 0 {
		ConstraintViolationCount.WithLabelValues(fx.name).Inc()
		return errors.Wrapf(memdex_errors.ErrConstraintViolation,
			"%s of key %s, index %s", c.Action, c.Prev, fx.name)
	}
	return nil
}

func (fx *ForeignIndex) keyOf(row Row) (Key, error) {
	if fx.key == nil {
		return nil, errors.Wrap(memdex_errors.ErrNoKeyFunc, fx.name)
	}
	return fx.key(row), nil
}

// Add files the child row under its foreign key. The key must exist
// in the parent index and the row must not already be in the bucket.
func (fx *ForeignIndex) Add(row Row) error {
	if !fx.filter(row) {
		return nil
	}
	key, err := fx.keyOf(row)
	if err != nil {
		return err
	}
	return fx.addToBucket(key, row)
}

func (fx *ForeignIndex) addToBucket(key Key, row Row) error {
	if !fx.parent.Contains(key) {
		return errors.Wrapf(memdex_errors.ErrMissingParentKey, "index %s, key %s", fx.name, key)
	}
	bucket, _ := fx.buckets.get(key)
	for _, r := range bucket {
		if r == row {
			return errors.Wrapf(memdex_errors.ErrDuplicateKey, "index %s, key %s", fx.name, key)
		}
	}
	fx.buckets.put(key, append(bucket, row))
	fx.undo.push(undoRec{op: undoDelChild, key: key, row: row})
	IndexOpCount.WithLabelValues(fx.name, "add").Inc()
	return nil
}

// Remove takes the child row out of its bucket, dropping the bucket
// when it empties. A row that is not filed is a silent miss.
func (fx *ForeignIndex) Remove(row Row) error {
	if !fx.filter(row) {
		return nil
	}
	key, err := fx.keyOf(row)
	if err != nil {
		return err
	}
	if fx.dropFromBucket(key, row) {
		fx.undo.push(undoRec{op: undoAddChild, key: key, row: row})
		IndexOpCount.WithLabelValues(fx.name, "remove").Inc()
	}
	return nil
}

func (fx *ForeignIndex) dropFromBucket(key Key, row Row) bool {
	bucket, ok := fx.buckets.get(key)
	if !ok {
		return false
	}
	for i, r := range bucket {
		if r == row {
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			if len(bucket) == 0 {
				fx.buckets.del(key)
			} else {
				fx.buckets.put(key, bucket)
			}
			return true
		}
	}
	return false
}

// Update moves the child row between buckets when its foreign key
// changed between the Previous and Current versions.
func (fx *ForeignIndex) Update(row Row) error {
	prev := row.Version(VersionPrevious)
	if prev == nil {
		return errors.Wrap(memdex_errors.ErrNoVersion, fx.name)
	}
	prevIn := fx.filter(prev)
	currIn := fx.filter(row)
	if !prevIn && !currIn {
		return nil
	}
	var prevKey, currKey Key
	var err error
	if prevIn {
		if prevKey, err = fx.keyOf(prev); err != nil {
			return err
		}
	}
	if currIn {
		if currKey, err = fx.keyOf(row); err != nil {
			return err
		}
	}
	if prevIn && currIn && prevKey.Equal(currKey) {
		return nil
	}
	if prevIn {
		if !fx.dropFromBucket(prevKey, row) {
			return errors.Wrapf(memdex_errors.ErrMissingParentKey,
				"index %s has no row under key %s", fx.name, prevKey)
		}
		fx.undo.push(undoRec{op: undoAddChild, key: prevKey, row: row})
	}
	if currIn {
		if err = fx.addToBucket(currKey, row); err != nil {
			return err
		}
	}
	IndexOpCount.WithLabelValues(fx.name, "update").Inc()
	return nil
}

// Children returns the rows filed under the parent row's key.
func (fx *ForeignIndex) Children(parent Row) ([]Row, error) {
	key, err := fx.parent.KeyOf(parent)
	if err != nil {
		return nil, err
	}
	bucket, _ := fx.buckets.get(key)
	out := make([]Row, len(bucket))
	copy(out, bucket)
	return out, nil
}

// Parent resolves the child row's parent through the parent index.
func (fx *ForeignIndex) Parent(child Row) (Row, bool) {
	key, err := fx.keyOf(child)
	if err != nil {
		return nil, false
	}
	return fx.parent.Find(key)
}

// HasParent is true when the child is not indexed at all or its
// parent row exists.
func (fx *ForeignIndex) HasParent(child Row) bool {
	if !fx.filter(child) {
		return true
	}
	_, ok := fx.Parent(child)
	return ok
}

func (fx *ForeignIndex) Prepare() (Vote, error) {
	if fx.undo.empty() {
		return VoteDone, nil
	}
	return VotePrepared, nil
}

func (fx *ForeignIndex) Commit() {
	fx.undo.clear()
}

func (fx *ForeignIndex) Rollback() {
	fx.undo.drain(func(rec undoRec) {
		switch rec.op {
		case undoDelChild:
			fx.dropFromBucket(rec.key, rec.row)
		case undoAddChild:
			bucket, _ := fx.buckets.get(rec.key)
			fx.buckets.put(rec.key, append(bucket, rec.row))
		}
	})
}

func (fx *ForeignIndex) InDoubt() {
	panic(memdex_errors.ErrInDoubt)
}

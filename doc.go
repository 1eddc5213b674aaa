// Package memdex is the transactional in-memory indexing engine that
// generated, strongly-typed table and row code links against.
//
// # Overview
//
// The engine provides relational primitives for row objects held
// entirely in process memory:
//
//  1. UniqueIndex
//     A key to row mapping, the analogue of a primary key. Inserting
//     a duplicate returns ErrDuplicateKey. Every effective mutation
//     pushes an undo record and synchronously notifies subscribers.
//
//  2. ForeignIndex
//     A key to row-set mapping tied to a parent UniqueIndex. Bucket
//     keys must exist in the parent; a parent delete or re-key that
//     would orphan children is vetoed with ErrConstraintViolation.
//
//  3. locks.RWLock
//     The asynchronous reader/writer lock guarding every index, table
//     and row. Strict writer priority, per-call timeouts, context
//     suspension.
//
//  4. Scope and Txn
//     A locking transaction scope that deduplicates lock
//     acquisitions, enlists participants and drives two-phase commit:
//     Prepare on everyone, then Commit on the prepared participants,
//     or Rollback draining each undo stack in LIFO order.
//
// # Usage
//
// Open a Scope, wait for reader or writer access on every index,
// table and row the work will touch, mutate through the index
// operations, then Complete and Close. Closing without Complete rolls
// everything back:
//
//	scope := memdex.NewScope(time.Second)
//	defer scope.Close()
//	if err := scope.WaitWriter(pk); err != nil {
//		return err
//	}
//	if err := pk.Add(row); err != nil {
//		return err
//	}
//	scope.Complete()
//
// # Consistency guarantee
//
// Change events are delivered synchronously on the mutating
// goroutine, so a referential-integrity veto happens before the
// mutation returns and before any other goroutine can acquire the
// write lock. Within one scope, undo records are pushed in mutation
// order and drained in reverse, which makes rollback the exact
// inverse of forward execution.
package memdex

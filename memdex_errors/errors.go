// Provides common memdex errors definitions.
package memdex_errors

import "errors"

var (
	ErrDuplicateKey        = errors.New("memdex: duplicate key")
	ErrMissingParentKey    = errors.New("memdex: missing parent key")
	ErrConstraintViolation = errors.New("memdex: constraint violation, cannot orphan children")
	ErrRecordNotFound      = errors.New("memdex: record not found")

	ErrLockTimeout      = errors.New("memdex: lock acquisition timed out")
	ErrInvalidLockState = errors.New("memdex: lock exit without matching enter")
	ErrInvalidTimeout   = errors.New("memdex: negative timeout")

	ErrNoKeyFunc    = errors.New("memdex: index has no key function")
	ErrTxnFinished  = errors.New("memdex: transaction already finished")
	ErrInDoubt      = errors.New("memdex: in-doubt resolution is not supported")
	ErrNoVersion    = errors.New("memdex: row version unavailable")
	ErrUnknownTable = errors.New("memdex: unknown table")
)

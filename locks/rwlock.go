// Package locks provides the reader/writer lock that guards every
// index, table and row. Unlike sync.RWMutex it supports suspension on
// a context, per-call timeouts and strict writer priority: a writer
// that has announced intent wins over any reader arriving later.
package locks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drpcorg/memdex/memdex_errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"
)

var LockAcquireCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "memdex",
	Subsystem: "locks",
	Name:      "acquires",
}, []string{"mode"})

var LockTimeoutCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "memdex",
	Subsystem: "locks",
	Name:      "timeouts",
}, []string{"mode"})

var LockHolders = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "memdex",
	Subsystem: "locks",
	Name:      "holders",
}, []string{"mode"})

// Infinite disables the timeout on a blocking Enter call.
const Infinite = time.Duration(-1)

// writeState describes one write window: the lifetime of a writer (or
// a train of back-to-back writers) from admission to the moment the
// last of them exits. Readers arriving during the window queue here
// and are all granted together on teardown.
type writeState struct {
	active   bool
	draining bool
	released bool
	waiters  int
	exit     chan struct{}
	drain    chan struct{}
}

// RWLock is the asynchronous reader/writer lock. The zero value is
// ready to use. It is not recursive; see Scope for per-transaction
// deduplication of repeat acquisitions.
type RWLock struct {
	mu             sync.Mutex
	writerGate     *semaphore.Weighted
	activeReaders  int
	pendingWriters int
	write          *writeState
}

func (l *RWLock) gateLocked() *semaphore.Weighted {
	if l.writerGate == nil {
		l.writerGate = semaphore.NewWeighted(1)
	}
	return l.writerGate
}

func timeoutCtx(timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if timeout == Infinite {
		return context.Background(), func() {}, nil
	}
	if timeout < 0 {
		return nil, nil, memdex_errors.ErrInvalidTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return ctx, cancel, nil
}

func waitErr(ctx context.Context, mode string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		LockTimeoutCount.WithLabelValues(mode).Inc()
		return memdex_errors.ErrLockTimeout
	}
	return err
}

// EnterRead acquires shared mode, blocking up to timeout.
// A timeout of 0 means try, Infinite means wait forever.
func (l *RWLock) EnterRead(timeout time.Duration) error {
	ctx, cancel, err := timeoutCtx(timeout)
	if err != nil {
		return err
	}
	defer cancel()
	return l.enterRead(ctx)
}

// TryEnterRead is EnterRead reporting success instead of an error.
func (l *RWLock) TryEnterRead(timeout time.Duration) bool {
	return l.EnterRead(timeout) == nil
}

// WaitReader acquires shared mode, suspending on ctx.
func (l *RWLock) WaitReader(ctx context.Context) error {
	return l.enterRead(ctx)
}

// EnterWrite acquires exclusive mode, blocking up to timeout.
func (l *RWLock) EnterWrite(timeout time.Duration) error {
	ctx, cancel, err := timeoutCtx(timeout)
	if err != nil {
		return err
	}
	defer cancel()
	return l.enterWrite(ctx)
}

// TryEnterWrite is EnterWrite reporting success instead of an error.
func (l *RWLock) TryEnterWrite(timeout time.Duration) bool {
	return l.EnterWrite(timeout) == nil
}

// WaitWriter acquires exclusive mode, suspending on ctx.
func (l *RWLock) WaitWriter(ctx context.Context) error {
	return l.enterWrite(ctx)
}

func (l *RWLock) enterRead(ctx context.Context) error {
	l.mu.Lock()
	if l.write == nil {
		l.activeReaders++
		l.mu.Unlock()
		LockAcquireCount.WithLabelValues("read").Inc()
		LockHolders.WithLabelValues("read").Inc()
		return nil
	}
	// a write window is open, queue behind it
	ws := l.write
	if ws.exit == nil {
		ws.exit = make(chan struct{})
	}
	ws.waiters++
	exit := ws.exit
	l.mu.Unlock()

	select {
	case <-exit:
		// teardown already moved this reader into activeReaders
		LockAcquireCount.WithLabelValues("read").Inc()
		LockHolders.WithLabelValues("read").Inc()
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	if ws.released {
		// the window closed while cancellation fired, the grant stands
		l.mu.Unlock()
		LockAcquireCount.WithLabelValues("read").Inc()
		LockHolders.WithLabelValues("read").Inc()
		return nil
	}
	ws.waiters--
	l.mu.Unlock()
	return waitErr(ctx, "read")
}

func (l *RWLock) enterWrite(ctx context.Context) error {
	l.mu.Lock()
	gate := l.gateLocked()
	l.pendingWriters++
	if !gate.TryAcquire(1) {
		l.mu.Unlock()
		if err := gate.Acquire(ctx, 1); err != nil {
			l.rewindPendingWriter()
			return waitErr(ctx, "write")
		}
		l.mu.Lock()
	}
	// admitted, the gate is held
	l.pendingWriters--
	if l.write == nil {
		l.write = &writeState{drain: make(chan struct{}, 1)}
	}
	ws := l.write
	ws.active = true
	if l.activeReaders == 0 {
		l.mu.Unlock()
		LockAcquireCount.WithLabelValues("write").Inc()
		LockHolders.WithLabelValues("write").Inc()
		return nil
	}
	// wait for concurrent readers to leave
	ws.draining = true
	drain := ws.drain
	l.mu.Unlock()

	select {
	case <-drain:
		l.mu.Lock()
		ws.draining = false
		l.mu.Unlock()
		LockAcquireCount.WithLabelValues("write").Inc()
		LockHolders.WithLabelValues("write").Inc()
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	ws.draining = false
	select {
	case <-drain:
		// the last reader left in the same instant, hand the window back
	default:
	}
	l.exitWriteLocked(ws)
	l.mu.Unlock()
	return waitErr(ctx, "write")
}

func (l *RWLock) rewindPendingWriter() {
	l.mu.Lock()
	l.pendingWriters--
	if l.pendingWriters == 0 && l.write != nil && !l.write.active {
		// no writer is coming for the inactive window, let readers in
		l.teardownLocked(l.write)
	}
	l.mu.Unlock()
}

// ExitRead releases shared mode. Exiting a lock not held in shared
// mode is a programming error.
func (l *RWLock) ExitRead() error {
	l.mu.Lock()
	if l.activeReaders == 0 {
		l.mu.Unlock()
		return memdex_errors.ErrInvalidLockState
	}
	l.activeReaders--
	if l.activeReaders == 0 && l.write != nil && l.write.active && l.write.draining {
		select {
		case l.write.drain <- struct{}{}:
		default:
		}
	}
	l.mu.Unlock()
	LockHolders.WithLabelValues("read").Dec()
	return nil
}

// ExitWrite releases exclusive mode. Exiting a lock not held in
// exclusive mode is a programming error.
func (l *RWLock) ExitWrite() error {
	l.mu.Lock()
	ws := l.write
	if ws == nil || !ws.active || ws.draining {
		l.mu.Unlock()
		return memdex_errors.ErrInvalidLockState
	}
	l.exitWriteLocked(ws)
	l.mu.Unlock()
	LockHolders.WithLabelValues("write").Dec()
	return nil
}

func (l *RWLock) exitWriteLocked(ws *writeState) {
	if l.pendingWriters == 0 {
		l.teardownLocked(ws)
	} else {
		// the next writer reuses the window, queued readers keep waiting
		ws.active = false
	}
	l.writerGate.Release(1)
}

func (l *RWLock) teardownLocked(ws *writeState) {
	ws.released = true
	l.activeReaders += ws.waiters
	ws.waiters = 0
	if ws.exit != nil {
		close(ws.exit)
	}
	l.write = nil
}

// IsReadLockHeld reports whether any reader currently holds the lock.
func (l *RWLock) IsReadLockHeld() bool {
	l.mu.Lock()
	held := l.activeReaders > 0
	l.mu.Unlock()
	return held
}

// IsWriteLockHeld reports whether a writer currently owns the lock.
func (l *RWLock) IsWriteLockHeld() bool {
	l.mu.Lock()
	held := l.write != nil && l.write.active && !l.write.draining
	l.mu.Unlock()
	return held
}

package memdex

import (
	"sync"

	"github.com/drpcorg/memdex/memdex_errors"
	"github.com/google/uuid"
)

// Txn is the minimal two-phase-commit coordinator. The runtime has no
// ambient transaction facility, so the scope carries one of these:
// Prepare on every enlisted participant, then Commit on the prepared
// ones, or Rollback on all.
type Txn struct {
	id uuid.UUID

	mu           sync.Mutex
	participants []Participant
	finished     bool
}

func NewTxn() *Txn {
	return &Txn{id: uuid.New()}
}

func (t *Txn) ID() uuid.UUID {
	return t.id
}

// Enlist registers a participant for the second phase. Enlisting the
// same participant twice is a no-op.
func (t *Txn) Enlist(p Participant) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return memdex_errors.ErrTxnFinished
	}
	for _, q := range t.participants {
		if q == p {
			return nil
		}
	}
	t.participants = append(t.participants, p)
	return nil
}

// Commit runs both phases. Any prepare error turns the transaction
// into a rollback of every participant and is returned to the caller.
func (t *Txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return memdex_errors.ErrTxnFinished
	}
	t.finished = true

	prepared := make([]Participant, 0, len(t.participants))
	for _, p := range t.participants {
		vote, err := p.Prepare()
		if err != nil {
			t.rollbackLocked()
			TxnFinishedCount.WithLabelValues("rollback").Inc()
			return err
		}
		if vote == VotePrepared {
			prepared = append(prepared, p)
		}
	}
	for _, p := range prepared {
		p.Commit()
	}
	TxnFinishedCount.WithLabelValues("commit").Inc()
	return nil
}

// Rollback undoes every participant, last enlisted first.
func (t *Txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return memdex_errors.ErrTxnFinished
	}
	t.finished = true
	t.rollbackLocked()
	TxnFinishedCount.WithLabelValues("rollback").Inc()
	return nil
}

func (t *Txn) rollbackLocked() {
	for i := len(t.participants) - 1; i >= 0; i-- {
		t.participants[i].Rollback()
	}
}

package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/datumload/storage"
)

// Txn is a read-write BadgerDB transaction with a one-way lifecycle.
// It implements storage.Transaction.
type Txn struct {
	backend *Backend
	tx      *badger.Txn
	count   int
	state   storage.TxnState
}

var _ storage.Transaction = (*Txn)(nil)

// Put stages a write. badger.ErrTxnTooBig is reported as PutCapacityExceeded;
// the rejected entry is not staged and the transaction stays usable.
func (t *Txn) Put(key string, value []byte) (storage.PutResult, error) {
	if t.state != storage.TxnOpen {
		return storage.PutStored, storage.ErrTxnDone
	}

	err := t.tx.Set([]byte(key), value)
	switch {
	case err == nil:
		t.count++
		return storage.PutStored, nil
	case errors.Is(err, badger.ErrTxnTooBig):
		return storage.PutCapacityExceeded, nil
	default:
		t.fail()
		return storage.PutStored, fmt.Errorf("put %s: %w", key, err)
	}
}

// Commit writes the staged entries. The transaction is terminal afterwards.
func (t *Txn) Commit() error {
	if t.state != storage.TxnOpen {
		return storage.ErrTxnDone
	}

	err := t.tx.Commit()
	t.tx.Discard()
	t.release()
	if err != nil {
		t.state = storage.TxnFailed
		return fmt.Errorf("commit: %w", err)
	}
	t.state = storage.TxnCommitted
	return nil
}

// Abort discards the staged entries. No-op on a terminal transaction.
func (t *Txn) Abort() {
	if t.state != storage.TxnOpen {
		return
	}
	t.fail()
}

// Len returns the number of staged writes.
func (t *Txn) Len() int {
	return t.count
}

// State reports the lifecycle state.
func (t *Txn) State() storage.TxnState {
	return t.state
}

func (t *Txn) fail() {
	t.tx.Discard()
	t.release()
	t.state = storage.TxnFailed
}

func (t *Txn) release() {
	if t.backend != nil && t.backend.current == t {
		t.backend.current = nil
	}
}

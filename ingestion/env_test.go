package ingestion

import (
	"errors"
	"fmt"
	"sync"

	"github.com/poiesic/datumload/storage"
)

// fakeEnv is an in-memory storage.Environment with injectable failures.
type fakeEnv struct {
	mu        sync.Mutex
	committed map[string][]byte
	order     []string
	mapSize   int64
	commits   [][]string // keys of each successful commit, in order
	grows     int
	begins    int

	// capacityOn lists keys whose first put reports capacity exceeded.
	capacityOn map[string]int
	beginErr   error
	commitErr  error
	growErr    error
	putErr     error
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		committed:  make(map[string][]byte),
		mapSize:    1 << 20,
		capacityOn: make(map[string]int),
	}
}

var _ storage.Environment = (*fakeEnv)(nil)

func (e *fakeEnv) Begin() (storage.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.beginErr != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrTransaction, e.beginErr)
	}
	e.begins++
	return &fakeTxn{env: e}, nil
}

func (e *fakeEnv) CommitAndGrow(txn storage.Transaction) error {
	if err := txn.Commit(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.growErr != nil {
		return fmt.Errorf("%w: %w", storage.ErrResize, e.growErr)
	}
	e.mapSize *= 2
	e.grows++
	return nil
}

func (e *fakeEnv) EntryCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int64(len(e.committed))
}

func (e *fakeEnv) MapSize() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mapSize
}

func (e *fakeEnv) Close() error { return nil }

func (e *fakeEnv) keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

type fakeTxn struct {
	env    *fakeEnv
	keys   []string
	values [][]byte
	state  storage.TxnState
}

func (t *fakeTxn) Put(key string, value []byte) (storage.PutResult, error) {
	if t.state != storage.TxnOpen {
		return storage.PutStored, storage.ErrTxnDone
	}
	t.env.mu.Lock()
	defer t.env.mu.Unlock()
	if t.env.putErr != nil {
		t.state = storage.TxnFailed
		return storage.PutStored, t.env.putErr
	}
	if n := t.env.capacityOn[key]; n > 0 {
		t.env.capacityOn[key] = n - 1
		return storage.PutCapacityExceeded, nil
	}
	t.keys = append(t.keys, key)
	t.values = append(t.values, value)
	return storage.PutStored, nil
}

func (t *fakeTxn) Commit() error {
	if t.state != storage.TxnOpen {
		return storage.ErrTxnDone
	}
	t.env.mu.Lock()
	defer t.env.mu.Unlock()
	if t.env.commitErr != nil {
		t.state = storage.TxnFailed
		return t.env.commitErr
	}
	for i, key := range t.keys {
		if _, dup := t.env.committed[key]; dup {
			t.state = storage.TxnFailed
			return errors.New("duplicate key " + key)
		}
		t.env.committed[key] = t.values[i]
		t.env.order = append(t.env.order, key)
	}
	t.env.commits = append(t.env.commits, append([]string(nil), t.keys...))
	t.state = storage.TxnCommitted
	return nil
}

func (t *fakeTxn) Abort() {
	if t.state == storage.TxnOpen {
		t.state = storage.TxnFailed
	}
}

func (t *fakeTxn) Len() int { return len(t.keys) }

func (t *fakeTxn) State() storage.TxnState { return t.state }

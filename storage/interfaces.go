package storage

// Mode selects how an environment is opened.
type Mode int

const (
	// ModeNew creates the backing directory; it must not exist yet.
	ModeNew Mode = iota
	// ModeExisting opens an already-created store for writing.
	ModeExisting
)

func (m Mode) String() string {
	switch m {
	case ModeNew:
		return "new"
	case ModeExisting:
		return "existing"
	default:
		return "unknown"
	}
}

// PutResult is the outcome of staging a write inside a transaction.
type PutResult int

const (
	// PutStored means the write was staged.
	PutStored PutResult = iota
	// PutCapacityExceeded means the transaction reservation is full.
	// The write was not staged; everything staged before it is intact.
	PutCapacityExceeded
)

func (r PutResult) String() string {
	switch r {
	case PutStored:
		return "stored"
	case PutCapacityExceeded:
		return "capacity exceeded"
	default:
		return "unknown"
	}
}

// TxnState is the lifecycle state of a Transaction.
type TxnState int

const (
	TxnOpen TxnState = iota
	TxnCommitted
	TxnFailed
)

// UnknownCount is returned by EntryCount when the engine cannot report statistics.
const UnknownCount int64 = -1

// Transaction is an exclusively-owned batch of staged writes.
// Once Commit returns, or Abort is called, the transaction is terminal and
// every further call returns ErrTxnDone.
type Transaction interface {
	// Put stages a key/value write.
	// Capacity exhaustion is reported as PutCapacityExceeded with a nil error;
	// any other failure returns an error and fails the transaction.
	Put(key string, value []byte) (PutResult, error)

	// Commit makes all staged writes durable and visible.
	Commit() error

	// Abort discards staged writes. It is a no-op on a terminal transaction.
	Abort()

	// Len returns the number of writes staged so far.
	Len() int

	// State reports the lifecycle state.
	State() TxnState
}

// Environment is the contract to the embedded key-value engine.
// An Environment is owned by a single writer; it is not safe for concurrent use.
type Environment interface {
	// Begin starts a new read-write transaction.
	Begin() (Transaction, error)

	// CommitAndGrow commits txn and, only if the commit succeeded, doubles the
	// environment's capacity reservation.
	CommitAndGrow(txn Transaction) error

	// EntryCount returns the number of committed records, or UnknownCount.
	EntryCount() int64

	// MapSize returns the current capacity reservation in bytes.
	MapSize() int64

	// Close releases the environment. It is safe to call more than once.
	Close() error
}

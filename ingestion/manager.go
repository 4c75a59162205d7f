package ingestion

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/datumload/storage"
)

// DefaultBatchSize is the number of puts committed per transaction.
const DefaultBatchSize = 100

// ManagerStats summarizes the work done by a TransactionManager.
type ManagerStats struct {
	Committed int64 // Records in successfully committed transactions
	Commits   int   // Successful commits, including growth commits
	Grows     int   // Capacity reservations doubled
	Pending   int   // Records staged in the open transaction
}

// TransactionManager batches puts into transactions against a
// storage.Environment. It commits after every batchSize stored puts and, when
// a transaction runs out of capacity, commits what is staged, grows the
// environment and retries the rejected put in a new transaction.
//
// A TransactionManager is owned by a single goroutine.
type TransactionManager struct {
	env       storage.Environment
	batchSize int
	txn       storage.Transaction
	stats     ManagerStats
	logger    *slog.Logger
}

// ManagerOption configures a TransactionManager.
type ManagerOption func(*TransactionManager)

// WithManagerBatchSize sets the number of puts per transaction.
// Values below 1 are raised to 1.
func WithManagerBatchSize(size int) ManagerOption {
	return func(m *TransactionManager) {
		if size < 1 {
			size = 1
		}
		m.batchSize = size
	}
}

// WithManagerLogger sets a custom logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *TransactionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewTransactionManager creates a manager writing into env.
func NewTransactionManager(env storage.Environment, opts ...ManagerOption) (*TransactionManager, error) {
	if env == nil {
		return nil, ErrEnvironmentRequired
	}
	m := &TransactionManager{
		env:       env,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Put stages one record, committing and growing as needed.
// Any returned error is fatal for the run; the open transaction has been aborted.
func (m *TransactionManager) Put(key string, value []byte) error {
	if err := m.begin(); err != nil {
		return err
	}

	res, err := m.txn.Put(key, value)
	if err != nil {
		m.Abort()
		return fmt.Errorf("staging %s: %w", key, err)
	}

	switch res {
	case storage.PutStored:
		return m.stored()
	case storage.PutCapacityExceeded:
		return m.growAndRetry(key, value)
	default:
		m.Abort()
		return fmt.Errorf("staging %s: unexpected put result %v", key, res)
	}
}

// growAndRetry commits what is staged, doubles the reservation and retries
// the rejected put exactly once in a fresh transaction.
func (m *TransactionManager) growAndRetry(key string, value []byte) error {
	staged := m.txn.Len()
	previous := m.env.MapSize()
	m.logger.Debug("transaction full, growing environment", "key", key, "staged", staged, "mapSize", previous)

	txn := m.txn
	m.txn = nil
	if err := m.env.CommitAndGrow(txn); err != nil {
		txn.Abort()
		if txn.State() == storage.TxnCommitted {
			m.stats.Committed += int64(staged)
			m.stats.Commits++
		}
		return fmt.Errorf("growing environment at %s: %w", key, err)
	}
	m.stats.Committed += int64(staged)
	m.stats.Commits++
	m.stats.Grows++
	m.logger.Info("grew environment", "from", previous, "to", m.env.MapSize(), "committed", m.stats.Committed)

	if err := m.begin(); err != nil {
		return err
	}
	res, err := m.txn.Put(key, value)
	if err != nil {
		m.Abort()
		return fmt.Errorf("staging %s after growth: %w", key, err)
	}
	if res != storage.PutStored {
		m.Abort()
		return fmt.Errorf("%w: %w: %s (%d bytes)", ErrRecordTooLarge, storage.ErrCapacityExceeded, key, len(value))
	}
	return m.stored()
}

func (m *TransactionManager) stored() error {
	if m.txn.Len() >= m.batchSize {
		return m.commit()
	}
	return nil
}

// Flush commits the open transaction, if any. A transaction with no staged
// puts is committed as a no-op.
func (m *TransactionManager) Flush() error {
	if m.txn == nil {
		return nil
	}
	return m.commit()
}

// Abort discards the open transaction, if any.
func (m *TransactionManager) Abort() {
	if m.txn == nil {
		return
	}
	m.txn.Abort()
	m.txn = nil
}

// Stats returns a snapshot of the manager's counters.
func (m *TransactionManager) Stats() ManagerStats {
	s := m.stats
	if m.txn != nil {
		s.Pending = m.txn.Len()
	}
	return s
}

func (m *TransactionManager) begin() error {
	if m.txn != nil {
		return nil
	}
	txn, err := m.env.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	m.txn = txn
	return nil
}

func (m *TransactionManager) commit() error {
	txn := m.txn
	m.txn = nil
	staged := txn.Len()
	if err := txn.Commit(); err != nil {
		txn.Abort()
		return fmt.Errorf("committing %d records: %w", staged, err)
	}
	m.stats.Committed += int64(staged)
	m.stats.Commits++
	m.logger.Debug("committed transaction", "records", staged, "total", m.stats.Committed)
	return nil
}

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/datumload/core"
	"github.com/poiesic/datumload/storage"
)

const (
	// DefaultMapSize is the initial capacity reservation (badger memtable size).
	DefaultMapSize int64 = 64 << 20

	// maxValueThreshold mirrors badger's upper bound for inline values.
	maxValueThreshold int64 = 1 << 20
)

// Backend wraps a BadgerDB instance and implements storage.Environment.
//
// The capacity reservation is badger's memtable size: a write transaction may
// stage at most 15% of it, and exceeding that surfaces as ErrTxnTooBig.
// Growing the reservation reopens the database with a doubled memtable.
type Backend struct {
	db         *badger.DB
	path       string
	mapSize    int64
	syncWrites bool
	current    *Txn
	logger     *slog.Logger
}

var _ storage.Environment = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithInitialMapSize sets the initial capacity reservation in bytes.
func WithInitialMapSize(size int64) Option {
	return func(b *Backend) {
		if size > 0 {
			b.mapSize = size
		}
	}
}

// WithSyncWrites controls whether every commit is fsynced. Default is true.
func WithSyncWrites(sync bool) Option {
	return func(b *Backend) {
		b.syncWrites = sync
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens a BadgerDB environment at path.
//
// ModeNew creates the directory first and fails if it already exists.
// ModeExisting requires the directory to exist.
func Open(path string, mode storage.Mode, opts ...Option) (*Backend, error) {
	b := &Backend{
		path:       path,
		mapSize:    DefaultMapSize,
		syncWrites: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	switch mode {
	case storage.ModeNew:
		if err := os.Mkdir(path, 0744); err != nil {
			if errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("%w: %s", storage.ErrAlreadyExists, path)
			}
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	case storage.ModeExisting:
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", storage.ErrNotExist, path)
			}
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", storage.ErrEnvironment, path)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported mode %d", storage.ErrEnvironment, mode)
	}

	if err := b.open(); err != nil {
		return nil, err
	}

	b.logger.Debug("opened environment", "path", path, "mode", mode.String(), "mapSize", b.mapSize)
	return b, nil
}

func (b *Backend) open() error {
	threshold := (15 * b.mapSize) / 100
	if threshold > maxValueThreshold {
		threshold = maxValueThreshold
	}

	opts := badger.DefaultOptions(b.path).
		WithMemTableSize(b.mapSize).
		WithValueThreshold(threshold).
		WithSyncWrites(b.syncWrites)
	opts.Logger = &badgerLoggerAdapter{logger: b.logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrEnvironment, err)
	}
	b.db = db
	return nil
}

// Close closes the BadgerDB database.
// Safe to call on a closed or never-opened Backend. An open transaction is aborted.
func (b *Backend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	if b.current != nil {
		b.current.Abort()
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b == nil || b.db == nil || b.db.IsClosed()
}

// Path returns the backing directory.
func (b *Backend) Path() string {
	return b.path
}

// MapSize returns the current capacity reservation in bytes.
func (b *Backend) MapSize() int64 {
	return b.mapSize
}

// Begin starts a read-write transaction. Only one may be open at a time.
func (b *Backend) Begin() (storage.Transaction, error) {
	if b.IsClosed() {
		return nil, fmt.Errorf("%w: %w", storage.ErrTransaction, storage.ErrStorageClosed)
	}
	if b.current != nil {
		return nil, fmt.Errorf("%w: a write transaction is already open", storage.ErrTransaction)
	}
	txn := &Txn{
		backend: b,
		tx:      b.db.NewTransaction(true),
	}
	b.current = txn
	return txn, nil
}

// CommitAndGrow commits txn, then doubles the capacity reservation.
// Growth is skipped when the commit fails.
func (b *Backend) CommitAndGrow(txn storage.Transaction) error {
	if err := txn.Commit(); err != nil {
		return err
	}
	return b.Grow()
}

// Grow doubles the capacity reservation by reopening the database with a
// larger memtable. No transaction may be open.
// On failure the Backend is left closed; committed data remains on disk.
func (b *Backend) Grow() error {
	if b.IsClosed() {
		return fmt.Errorf("%w: %w", storage.ErrResize, storage.ErrStorageClosed)
	}
	if b.current != nil {
		return fmt.Errorf("%w: a write transaction is still open", storage.ErrResize)
	}

	previous := b.mapSize
	if err := b.db.Close(); err != nil {
		b.db = nil
		return fmt.Errorf("%w: closing for resize: %w", storage.ErrResize, err)
	}
	b.db = nil
	b.mapSize = previous * 2

	if err := b.open(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrResize, err)
	}

	b.logger.Info("grew environment", "path", b.path, "from", previous, "to", b.mapSize)
	return nil
}

// EntryCount returns the number of committed keys, or storage.UnknownCount.
func (b *Backend) EntryCount() int64 {
	if b.IsClosed() {
		return storage.UnknownCount
	}

	var count int64
	err := b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		b.logger.Warn("error counting entries", "err", err)
		return storage.UnknownCount
	}
	return count
}

// NextKey returns the position after the highest committed record key, or 0
// for an empty store. Appending from NextKey never reuses a key, even when
// earlier runs skipped positions. Keys that are not record positions are ignored.
func (b *Backend) NextKey() (int, error) {
	if b.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	next := 0
	err := b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Keys wider than core.KeyWidth do not sort after narrower ones,
		// so the highest position can sit anywhere in key order.
		for iter.Rewind(); iter.Valid(); iter.Next() {
			n, err := core.ParseKey(string(iter.Item().Key()))
			if err != nil {
				continue
			}
			next = max(next, n+1)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", storage.ErrEnvironment, err)
	}
	return next, nil
}

// ForEach calls fn for each committed record in key order.
// The value slice is only valid for the duration of the call.
func (b *Backend) ForEach(ctx context.Context, fn func(key string, value []byte) error) error {
	if b.IsClosed() {
		return storage.ErrStorageClosed
	}

	return b.db.View(func(tx *badger.Txn) error {
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

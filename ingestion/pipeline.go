package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/datumload/core"
	"github.com/poiesic/datumload/storage"
)

// Pipeline loads a list of items into a storage environment.
// A producer serializes items while a persister commits them; the two run
// concurrently on a two-worker pool and share only a bounded Channel.
type Pipeline struct {
	env            storage.Environment
	serializer     Serializer
	pool           *ants.Pool
	batchSize      int
	queueCapacity  int
	origin         int
	progressWriter io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBatchSize sets the number of records per transaction.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be greater than 0, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithQueueCapacity sets the number of records in flight between producer
// and persister. Default is DefaultQueueCapacity.
func WithQueueCapacity(capacity int) Option {
	return func(p *Pipeline) error {
		if capacity < 1 {
			return fmt.Errorf("queue capacity must be greater than 0, got %d", capacity)
		}
		p.queueCapacity = capacity
		return nil
	}
}

// WithOrigin sets the key number assigned to the first item.
func WithOrigin(origin int) Option {
	return func(p *Pipeline) error {
		if origin < 0 {
			return fmt.Errorf("origin must not be negative, got %d", origin)
		}
		p.origin = origin
		return nil
	}
}

// WithProgress reports progress to w every interval records.
func WithProgress(w io.Writer, interval int) Option {
	return func(p *Pipeline) error {
		p.progressWriter = w
		p.reportInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline writing into env.
func NewPipeline(env storage.Environment, serializer Serializer, opts ...Option) (*Pipeline, error) {
	if env == nil {
		return nil, ErrEnvironmentRequired
	}
	if serializer == nil {
		return nil, ErrSerializerRequired
	}

	p := &Pipeline{
		env:           env,
		serializer:    serializer,
		batchSize:     DefaultBatchSize,
		queueCapacity: DefaultQueueCapacity,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	// One worker for the producer, one for the persister
	pool, err := ants.NewPool(2)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	return p, nil
}

// Result summarizes a pipeline run.
type Result struct {
	Produced   int   // Records handed to the persister
	Skipped    int   // Items dropped after a serialization failure
	Committed  int64 // Records in committed transactions
	Commits    int
	Grows      int
	EntryCount int64 // Store entry count after the run
}

// Run loads items in order and returns once every produced record is
// committed. Store failures abort the run and are returned; serialization
// failures only skip the affected item.
func (p *Pipeline) Run(ctx context.Context, items []core.Item) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	producer, err := NewRecordProducer(p.serializer,
		WithProducerOrigin(p.origin), WithProducerLogger(p.logger))
	if err != nil {
		return nil, err
	}
	manager, err := NewTransactionManager(p.env,
		WithManagerBatchSize(p.batchSize), WithManagerLogger(p.logger))
	if err != nil {
		return nil, err
	}

	var tracker *ProgressTracker
	if p.progressWriter != nil {
		tracker = NewProgressTracker(p.progressWriter, len(items), p.reportInterval)
		tracker.Start()
		defer tracker.Finish()
	}

	ch := NewChannel(p.queueCapacity)

	var (
		wg         sync.WaitGroup
		produced   ProduceStats
		produceErr error
		persistErr error
	)

	wg.Add(1)
	err = p.pool.Submit(func() {
		defer wg.Done()
		produced, produceErr = producer.Produce(ctx, items, ch)
		if produceErr != nil {
			cancel()
		}
	})
	if err != nil {
		wg.Done()
		return nil, fmt.Errorf("starting producer: %w", err)
	}

	wg.Add(1)
	err = p.pool.Submit(func() {
		defer wg.Done()
		persistErr = p.persist(ctx, ch, manager, tracker)
		if persistErr != nil {
			cancel()
		}
	})
	if err != nil {
		wg.Done()
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("starting persister: %w", err)
	}

	wg.Wait()

	stats := manager.Stats()
	result := &Result{
		Produced:   produced.Produced,
		Skipped:    produced.Skipped,
		Committed:  stats.Committed,
		Commits:    stats.Commits,
		Grows:      stats.Grows,
		EntryCount: p.env.EntryCount(),
	}

	// The persister error is the root cause when both sides fail
	if persistErr != nil {
		return result, persistErr
	}
	if produceErr != nil {
		return result, produceErr
	}

	p.logger.Info("ingestion complete",
		"produced", result.Produced,
		"skipped", result.Skipped,
		"committed", result.Committed,
		"commits", result.Commits,
		"grows", result.Grows,
		"entries", result.EntryCount)
	return result, nil
}

// persist drains ch into the manager until the producer finished and the
// channel is empty, then commits the remainder.
func (p *Pipeline) persist(ctx context.Context, ch *Channel, manager *TransactionManager, tracker *ProgressTracker) error {
	for {
		record, ok, err := ch.Pop(ctx)
		if err != nil {
			manager.Abort()
			return err
		}
		if !ok {
			break
		}
		if err := manager.Put(record.Key, record.Value); err != nil {
			return err
		}
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	if err := manager.Flush(); err != nil {
		return fmt.Errorf("final commit: %w", err)
	}
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

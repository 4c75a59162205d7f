package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/datumload/core"
)

// Serializer turns one list item into an opaque record payload.
type Serializer interface {
	Serialize(ctx context.Context, item core.Item) ([]byte, error)
}

// SerializerFunc adapts a function to the Serializer interface.
type SerializerFunc func(ctx context.Context, item core.Item) ([]byte, error)

// Serialize calls f(ctx, item).
func (f SerializerFunc) Serialize(ctx context.Context, item core.Item) ([]byte, error) {
	return f(ctx, item)
}

// ProduceStats summarizes a producer run.
type ProduceStats struct {
	Produced int // Records pushed to the channel
	Skipped  int // Items dropped after a serialization failure
}

// RecordProducer serializes items in order and pushes them as records.
// The item at position i is keyed core.FormatKey(origin+i); a skipped item
// leaves its key unused.
type RecordProducer struct {
	serializer Serializer
	origin     int
	logger     *slog.Logger
}

// ProducerOption configures a RecordProducer.
type ProducerOption func(*RecordProducer)

// WithProducerOrigin sets the key number of the first item.
func WithProducerOrigin(origin int) ProducerOption {
	return func(p *RecordProducer) {
		if origin >= 0 {
			p.origin = origin
		}
	}
}

// WithProducerLogger sets a custom logger.
func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(p *RecordProducer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewRecordProducer creates a producer using serializer for payloads.
func NewRecordProducer(serializer Serializer, opts ...ProducerOption) (*RecordProducer, error) {
	if serializer == nil {
		return nil, ErrSerializerRequired
	}
	p := &RecordProducer{
		serializer: serializer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Produce pushes one record per successfully serialized item, then finishes ch.
// It only returns an error when ctx is cancelled.
func (p *RecordProducer) Produce(ctx context.Context, items []core.Item, ch *Channel) (ProduceStats, error) {
	defer ch.Finish()

	var stats ProduceStats
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key := core.FormatKey(p.origin + i)
		value, err := p.serializer.Serialize(ctx, item)
		if err != nil {
			stats.Skipped++
			p.logger.Warn("skipping item", "key", key, "source", item.Source, "err", err)
			continue
		}

		if err := ch.Push(ctx, core.Record{Key: key, Value: value}); err != nil {
			return stats, err
		}
		stats.Produced++
	}
	return stats, nil
}

package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/poiesic/datumload/core"
	"github.com/poiesic/datumload/storage"
	"github.com/poiesic/datumload/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestBackend(t *testing.T, opts ...badger.Option) *badger.Backend {
	t.Helper()
	opts = append([]badger.Option{badger.WithSyncWrites(false)}, opts...)
	backend, err := badger.Open(filepath.Join(t.TempDir(), "db"), storage.ModeNew, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func newTestPipeline(t *testing.T, env storage.Environment, serializer Serializer, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(env, serializer, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func makeItems(n int) []core.Item {
	items := make([]core.Item, n)
	for i := range items {
		items[i] = core.Item{Source: fmt.Sprintf("img%d.jpg", i), Label: i % 7}
	}
	return items
}

func committedKeys(t *testing.T, backend *badger.Backend) []string {
	t.Helper()
	var keys []string
	err := backend.ForEach(context.Background(), func(key string, value []byte) error {
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	return keys
}

func TestNewPipeline_Validation(t *testing.T) {
	env := newFakeEnv()

	_, err := NewPipeline(nil, labelSerializer())
	assert.ErrorIs(t, err, ErrEnvironmentRequired)

	_, err = NewPipeline(env, nil)
	assert.ErrorIs(t, err, ErrSerializerRequired)

	_, err = NewPipeline(env, labelSerializer(), WithBatchSize(0))
	assert.Error(t, err)

	_, err = NewPipeline(env, labelSerializer(), WithQueueCapacity(0))
	assert.Error(t, err)

	_, err = NewPipeline(env, labelSerializer(), WithOrigin(-1))
	assert.Error(t, err)
}

func TestPipeline_ThreeItems(t *testing.T) {
	backend := setupTestBackend(t)
	p := newTestPipeline(t, backend, labelSerializer())

	items := []core.Item{{Source: "a.jpg", Label: 1}, {Source: "b.jpg", Label: 2}, {Source: "c.jpg", Label: 3}}
	result, err := p.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Produced)
	assert.Equal(t, int64(3), result.EntryCount)
	assert.Equal(t, int64(3), backend.EntryCount())
	assert.Equal(t, []string{"00000000", "00000001", "00000002"}, committedKeys(t, backend))
}

func TestPipeline_NoLoss(t *testing.T) {
	sizes := []int{0, 1, 99, 100, 101, 1000}

	for _, n := range sizes {
		t.Run(fmt.Sprintf("%d items", n), func(t *testing.T) {
			backend := setupTestBackend(t)
			p := newTestPipeline(t, backend, labelSerializer(), WithQueueCapacity(8))

			result, err := p.Run(context.Background(), makeItems(n))
			require.NoError(t, err)
			assert.Equal(t, int64(n), backend.EntryCount())
			assert.Equal(t, int64(n), result.Committed)

			keys := committedKeys(t, backend)
			for i, key := range keys {
				require.Equal(t, core.FormatKey(i), key)
			}
		})
	}
}

func TestPipeline_BatchBoundaries(t *testing.T) {
	env := newFakeEnv()
	p := newTestPipeline(t, env, labelSerializer(), WithBatchSize(2))

	result, err := p.Run(context.Background(), makeItems(5))
	require.NoError(t, err)

	require.Len(t, env.commits, 3)
	assert.Len(t, env.commits[0], 2)
	assert.Len(t, env.commits[1], 2)
	assert.Equal(t, []string{"00000004"}, env.commits[2])
	assert.Equal(t, int64(5), result.EntryCount)
	assert.Equal(t, 3, result.Commits)
}

func TestPipeline_CapacityGrowth(t *testing.T) {
	env := newFakeEnv()
	initial := env.MapSize()
	env.capacityOn[core.FormatKey(2)] = 1
	p := newTestPipeline(t, env, labelSerializer(), WithBatchSize(5))

	result, err := p.Run(context.Background(), makeItems(5))
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.EntryCount)
	assert.Equal(t, 1, result.Grows)
	assert.Equal(t, initial*2, env.MapSize())
	assert.Equal(t, []string{"00000000", "00000001", "00000002", "00000003", "00000004"}, env.keys())
}

func TestPipeline_RealCapacityGrowth(t *testing.T) {
	const initial int64 = 1 << 20
	backend := setupTestBackend(t, badger.WithInitialMapSize(initial))

	payload := bytes.Repeat([]byte{0x5a}, 4096)
	serializer := SerializerFunc(func(ctx context.Context, item core.Item) ([]byte, error) {
		return payload, nil
	})
	p := newTestPipeline(t, backend, serializer, WithBatchSize(10000))

	result, err := p.Run(context.Background(), makeItems(100))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Grows, 1)
	assert.Greater(t, backend.MapSize(), initial)
	assert.Equal(t, int64(100), backend.EntryCount())
	assert.Len(t, committedKeys(t, backend), 100)
}

func TestPipeline_SlowConsumerSmallQueue(t *testing.T) {
	env := newFakeEnv()
	p := newTestPipeline(t, env, labelSerializer(), WithQueueCapacity(2), WithBatchSize(3))

	_, err := p.Run(context.Background(), makeItems(10))
	require.NoError(t, err)

	keys := env.keys()
	require.Len(t, keys, 10)
	for i, key := range keys {
		assert.Equal(t, core.FormatKey(i), key)
	}
}

func TestPipeline_SkipsFailedItems(t *testing.T) {
	backend := setupTestBackend(t)
	p := newTestPipeline(t, backend, labelSerializer("img1.jpg", "img3.jpg"))

	result, err := p.Run(context.Background(), makeItems(5))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Produced)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []string{"00000000", "00000002", "00000004"}, committedKeys(t, backend))
}

func TestPipeline_Origin(t *testing.T) {
	backend := setupTestBackend(t)
	first := newTestPipeline(t, backend, labelSerializer())
	_, err := first.Run(context.Background(), makeItems(2))
	require.NoError(t, err)

	second := newTestPipeline(t, backend, labelSerializer(), WithOrigin(int(backend.EntryCount())))
	_, err = second.Run(context.Background(), makeItems(2))
	require.NoError(t, err)

	assert.Equal(t, []string{"00000000", "00000001", "00000002", "00000003"}, committedKeys(t, backend))
}

func TestPipeline_StoreFailureAborts(t *testing.T) {
	env := newFakeEnv()
	env.commitErr = errors.New("disk full")
	p := newTestPipeline(t, env, labelSerializer(), WithBatchSize(2), WithQueueCapacity(1))

	_, err := p.Run(context.Background(), makeItems(50))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, int64(0), env.EntryCount())
}

func TestPipeline_BeginFailureAborts(t *testing.T) {
	env := newFakeEnv()
	env.beginErr = errors.New("locked")
	p := newTestPipeline(t, env, labelSerializer())

	_, err := p.Run(context.Background(), makeItems(3))
	assert.ErrorIs(t, err, storage.ErrTransaction)
}

func TestPipeline_Progress(t *testing.T) {
	var buf bytes.Buffer
	env := newFakeEnv()
	p := newTestPipeline(t, env, labelSerializer(), WithProgress(&buf, 5))

	_, err := p.Run(context.Background(), makeItems(10))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "10/10")
}

func TestPipeline_ReusableAcrossRuns(t *testing.T) {
	env := newFakeEnv()
	p := newTestPipeline(t, env, labelSerializer())

	_, err := p.Run(context.Background(), makeItems(3))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []core.Item{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.EntryCount)
}

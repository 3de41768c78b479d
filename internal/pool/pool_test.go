package pool

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSize(t *testing.T) {
	assert.Equal(t, 8, Size(8))
	assert.Equal(t, runtime.NumCPU(), Size(-1))

	auto := Size(0)
	assert.GreaterOrEqual(t, auto, 1)
	assert.LessOrEqual(t, auto, runtime.NumCPU())
}

func TestSplit(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	batches := Split(items, 3)
	require.Len(t, batches, 3)
	assert.Equal(t, []int{1, 2, 3}, batches[0])
	assert.Equal(t, []int{4, 5, 6}, batches[1])
	assert.Equal(t, []int{7}, batches[2])
}

func TestSplitEdgeCases(t *testing.T) {
	assert.Nil(t, Split([]int{}, 3))

	whole := Split([]int{1, 2}, 0)
	require.Len(t, whole, 1)
	assert.Equal(t, []int{1, 2}, whole[0])

	exact := Split([]int{1, 2, 3, 4}, 2)
	assert.Len(t, exact, 2)
}

func TestMapPreservesBatchOrder(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	out, err := Map(context.Background(), 4, Split(items, 7), func(_ context.Context, batch []int) ([]int, error) {
		doubled := make([]int, len(batch))
		for i, v := range batch {
			doubled[i] = v * 2
		}
		return doubled, nil
	})
	require.NoError(t, err)
	require.Len(t, out, 100)
	for i, v := range out {
		assert.Equal(t, i*2, v)
	}
}

func TestMapStageFailure(t *testing.T) {
	boom := errors.New("batch exploded")
	out, err := Map(context.Background(), 2, Split([]int{1, 2, 3, 4}, 1), func(_ context.Context, batch []int) ([]int, error) {
		if batch[0] == 3 {
			return nil, boom
		}
		return batch, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, out)
}

func TestMapBoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int64
	items := make([]int, 32)
	_, err := Map(context.Background(), 3, Split(items, 1), func(_ context.Context, batch []int) ([]int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		runtime.Gosched()
		active.Add(-1)
		return nil, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestMapEmpty(t *testing.T) {
	out, err := Map(context.Background(), 4, nil, func(_ context.Context, batch []int) ([]int, error) {
		return batch, nil
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}

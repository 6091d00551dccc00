package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type viewKey struct {
	Model     string
	Neighbors int
	MinDist   float64
}

func TestMemo_ComputesOnce(t *testing.T) {
	m := New[viewKey, []float64](0)
	var calls int
	compute := func() ([]float64, error) {
		calls++
		return []float64{1, 2, 3}, nil
	}

	key := viewKey{"m1", 15, 0.1}
	first, err := m.Get(key, compute)
	require.NoError(t, err)
	second, err := m.Get(key, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Entries: 1}, m.Stats())
}

func TestMemo_DistinctKeys(t *testing.T) {
	m := New[viewKey, int](0)
	n := 0
	compute := func() (int, error) { n++; return n, nil }

	a, _ := m.Get(viewKey{"m1", 15, 0.1}, compute)
	b, _ := m.Get(viewKey{"m1", 15, 0.2}, compute)
	c, _ := m.Get(viewKey{"m2", 15, 0.1}, compute)

	assert.Equal(t, []int{1, 2, 3}, []int{a, b, c})
	assert.Equal(t, 3, m.Len())
}

func TestMemo_ErrorsNotCached(t *testing.T) {
	m := New[string, int](0)
	boom := errors.New("boom")

	_, err := m.Get("k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())

	v, err := m.Get("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestMemo_ConcurrentCallersShareComputation(t *testing.T) {
	m := New[string, int](0)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := m.Get("shared", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestMemo_EvictsLeastRecentlyUsed(t *testing.T) {
	m := New[string, string](2)
	get := func(k string) {
		_, err := m.Get(k, func() (string, error) { return k, nil })
		require.NoError(t, err)
	}

	get("a")
	get("b")
	get("a") // a is now most recent
	get("c") // evicts b

	_, ok := m.peek("b")
	assert.False(t, ok)
	_, ok = m.peek("a")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, int64(1), m.Stats().Evictions)
}

func TestMemo_Forget(t *testing.T) {
	m := New[string, int](0)
	calls := 0
	compute := func() (int, error) { calls++; return calls, nil }

	m.Get("k", compute)
	m.Forget("k")
	v, _ := m.Get("k", compute)
	assert.Equal(t, 2, v)
}

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock(1000)
	assert.Equal(t, int64(1000), c.NowMillis())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, int64(2500), c.NowMillis())

	c.Advance(-time.Second)
	assert.Equal(t, int64(2500), c.NowMillis(), "negative advance must be ignored")

	c.Set(100)
	assert.Equal(t, int64(2500), c.NowMillis(), "clock must not move backwards")
	c.Set(3000)
	assert.Equal(t, int64(3000), c.NowMillis())
}

func TestSystemClockMonotonic(t *testing.T) {
	var c SystemClock
	a := c.NowMillis()
	b := c.NowMillis()
	assert.GreaterOrEqual(t, b, a)
}

func TestMinHeapOrdering(t *testing.T) {
	h := NewMinHeap(func(a, b int) bool { return a < b })
	for _, v := range []int{5, 1, 4, 2, 3} {
		h.Add(v)
	}
	require.Equal(t, 5, h.Len())

	top, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, top)

	var got []int
	for h.Len() > 0 {
		v, ok := h.RemoveTop()
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)

	_, ok = h.RemoveTop()
	assert.False(t, ok)
}

func TestNewMinHeapFrom(t *testing.T) {
	h := NewMinHeapFrom([]string{"pear", "apple", "fig"}, func(a, b string) bool { return a < b })
	v, _ := h.RemoveTop()
	assert.Equal(t, "apple", v)
	v, _ = h.RemoveTop()
	assert.Equal(t, "fig", v)
}

func TestCounter(t *testing.T) {
	var c Counter
	c.Inc()
	assert.Equal(t, int64(2), c.Inc())
	assert.Equal(t, int64(2), c.Load())
}

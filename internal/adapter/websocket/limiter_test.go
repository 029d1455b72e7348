package websocket

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalConnectionLimiter(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire(), "third connection should be rejected")
	assert.Equal(t, int64(2), l.Current())

	l.Release()
	assert.True(t, l.Acquire())
}

func TestGlobalConnectionLimiter_Concurrent(t *testing.T) {
	l := NewGlobalConnectionLimiter(50)
	var granted atomic.Int64

	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			if l.Acquire() {
				granted.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int64(50), granted.Load())
	assert.Equal(t, int64(50), l.Current())
}

func TestIPConnectionLimiter(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.False(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.2"), "limits are per address")

	l.Release("10.0.0.1")
	assert.Equal(t, 1, l.Count("10.0.0.1"))
	l.Release("10.0.0.1")
	l.Release("10.0.0.1")
	assert.Equal(t, 0, l.Count("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
}

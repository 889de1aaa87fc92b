package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindingLastWriteWins(t *testing.T) {
	b := NewReplyBindingTable()

	_, had := b.Open(55, 1)
	assert.False(t, had)
	prev, had := b.Open(55, 2)
	assert.True(t, had)
	assert.EqualValues(t, 1, prev)
	assert.True(t, b.Has(55))
	assert.False(t, b.Has(56))

	target, ok := b.Take(55)
	assert.True(t, ok)
	assert.EqualValues(t, 2, target)

	_, ok = b.Take(55)
	assert.False(t, ok, "binding is one-shot")
	assert.False(t, b.Has(55))
	assert.Zero(t, b.Pending())
}

func TestBindingPerModerator(t *testing.T) {
	b := NewReplyBindingTable()
	b.Open(55, 1001)
	b.Open(56, 1002)
	assert.Equal(t, 2, b.Pending())

	target, ok := b.Take(56)
	assert.True(t, ok)
	assert.EqualValues(t, 1002, target)

	target, ok = b.Take(55)
	assert.True(t, ok)
	assert.EqualValues(t, 1001, target)
}

func TestBindingTakeIsExclusive(t *testing.T) {
	b := NewReplyBindingTable()
	b.Open(55, 1001)

	var mu sync.Mutex
	hits := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := b.Take(55); ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, hits)
}

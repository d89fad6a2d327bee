package registry_test

import (
	"sync"
	"testing"

	"github.com/fivetwenty-io/apicore/internal/registry"
	"github.com/stretchr/testify/assert"
)

func TestLoadingCounter_Edges(t *testing.T) {
	t.Parallel()

	counter := registry.NewLoadingCounter()

	var events []bool

	unsubscribe := counter.Subscribe(func(loading bool) {
		events = append(events, loading)
	})

	counter.Begin()
	counter.Begin()
	counter.End()
	counter.End()
	counter.End()

	assert.Equal(t, []bool{true, false}, events)
	assert.Equal(t, int64(0), counter.Count())

	unsubscribe()
	counter.Begin()
	assert.Len(t, events, 2)
	assert.True(t, counter.Loading())
}

func TestLoadingCounter_NeverNegative(t *testing.T) {
	t.Parallel()

	counter := registry.NewLoadingCounter()
	counter.End()
	counter.End()

	assert.Equal(t, int64(0), counter.Count())
	assert.False(t, counter.Loading())
}

func TestLoadingCounter_ConcurrentBalanced(t *testing.T) {
	t.Parallel()

	counter := registry.NewLoadingCounter()

	var (
		mutex sync.Mutex
		last  bool
	)

	counter.Subscribe(func(loading bool) {
		mutex.Lock()
		last = loading
		mutex.Unlock()
	})

	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			counter.Begin()
			counter.End()
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(0), counter.Count())

	mutex.Lock()
	defer mutex.Unlock()

	assert.False(t, last)
}

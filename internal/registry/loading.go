package registry

import (
	"sync"
	"sync/atomic"
)

// LoadingCounter counts in-flight requests that asked for a loading
// indicator. Subscribers hear about the 0->1 and 1->0 edges only.
type LoadingCounter struct {
	count atomic.Int64

	notifyMutex  sync.Mutex
	lastNotified bool

	subsMutex   sync.RWMutex
	subscribers map[uint64]func(bool)
	nextSubID   uint64
}

// NewLoadingCounter creates a counter at zero.
func NewLoadingCounter() *LoadingCounter {
	return &LoadingCounter{
		subscribers: make(map[uint64]func(bool)),
	}
}

// Begin increments the counter.
func (c *LoadingCounter) Begin() {
	c.count.Add(1)
	c.notify()
}

// End decrements the counter. It never goes below zero.
func (c *LoadingCounter) End() {
	for {
		current := c.count.Load()
		if current <= 0 {
			return
		}

		if c.count.CompareAndSwap(current, current-1) {
			break
		}
	}

	c.notify()
}

// Count returns the number of in-flight loading requests.
func (c *LoadingCounter) Count() int64 {
	return c.count.Load()
}

// Loading reports whether any loading request is in flight.
func (c *LoadingCounter) Loading() bool {
	return c.count.Load() > 0
}

// Subscribe registers fn for edge notifications and returns a function
// that removes it. fn must not call Begin or End.
func (c *LoadingCounter) Subscribe(fn func(loading bool)) func() {
	c.subsMutex.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers[id] = fn
	c.subsMutex.Unlock()

	return func() {
		c.subsMutex.Lock()
		delete(c.subscribers, id)
		c.subsMutex.Unlock()
	}
}

func (c *LoadingCounter) notify() {
	c.notifyMutex.Lock()
	defer c.notifyMutex.Unlock()

	loading := c.count.Load() > 0
	if loading == c.lastNotified {
		return
	}

	c.lastNotified = loading

	c.subsMutex.RLock()
	subscribers := make([]func(bool), 0, len(c.subscribers))

	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.subsMutex.RUnlock()

	for _, fn := range subscribers {
		fn(loading)
	}
}

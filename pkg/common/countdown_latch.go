package common

import (
	"context"
	"sync"
)

// CountDownLatch releases waiters once its counter reaches zero. Unlike
// sync.WaitGroup, counting down past zero is harmless and Await honours a
// context.
type CountDownLatch struct {
	sync.Mutex
	counter int
	done    chan struct{}
}

func NewCountDownLatch(count int) *CountDownLatch {
	c := &CountDownLatch{counter: count, done: make(chan struct{})}
	if count <= 0 {
		c.counter = 0
		close(c.done)
	}
	return c
}

func (c *CountDownLatch) Count() int {
	c.Lock()
	defer c.Unlock()
	return c.counter
}

func (c *CountDownLatch) CountDown() {
	c.Lock()
	defer c.Unlock()
	if c.counter == 0 {
		return
	}
	c.counter--
	if c.counter == 0 {
		close(c.done)
	}
}

// Done is closed when the counter reaches zero.
func (c *CountDownLatch) Done() <-chan struct{} { return c.done }

// Await blocks until the counter reaches zero or ctx is done.
func (c *CountDownLatch) Await(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package main

import "sync"

// cleanups runs registered functions in reverse order exactly once, either
// when the command returns or from an atexit handler.
type cleanups struct {
	fns   []func()
	mutex sync.Mutex
}

func (c *cleanups) add(fn func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fns = append(c.fns, fn)
}

func (c *cleanups) run() {
	c.mutex.Lock()
	fns := c.fns
	c.fns = nil
	c.mutex.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

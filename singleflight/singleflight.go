// Package singleflight collapses concurrent calls for the same key into one.
package singleflight

import (
	"errors"
	"sync"
)

// ErrPanicked is returned to callers that waited on a call whose fn
// panicked. The caller that ran fn gets the panic itself.
var ErrPanicked = errors.New("singleflight: function panicked")

// call is an in-flight or completed Do call.
type call[T any] struct {
	wg   sync.WaitGroup
	val  T
	err  error
	dups int
}

// Group runs fn at most once per key at a time; later callers for a key
// that is already in flight wait for and share the first caller's result.
type Group[T any] struct {
	mu sync.Mutex
	m  map[string]*call[T]
}

// Do executes fn for key unless a call for key is already running, in which
// case it waits and returns that call's result. shared reports whether the
// result was handed to more than one caller.
func (g *Group[T]) Do(key string, fn func() (T, error)) (val T, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call[T])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, true
	}
	c := &call[T]{}
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	g.doCall(c, key, fn)

	g.mu.Lock()
	shared = c.dups > 0
	g.mu.Unlock()
	return c.val, c.err, shared
}

// doCall runs fn and releases waiters even if fn panics.
func (g *Group[T]) doCall(c *call[T], key string, fn func() (T, error)) {
	normalReturn := false
	defer func() {
		if !normalReturn {
			c.err = ErrPanicked
		}
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
		c.wg.Done()
	}()

	c.val, c.err = fn()
	normalReturn = true
}

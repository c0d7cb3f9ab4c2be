// Copyright 2024 The Trino-Go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package async

import (
	"context"
	"sync"
	"sync/atomic"
)

// Future is a one-shot value that any number of goroutines may observe.
// It resolves at most once; continuations registered with OnResolve run
// exactly once each, inline on the goroutine that resolves the future
// (or inline on the registering goroutine if already resolved).
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	resolved  bool
	callbacks []func(T)
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that already holds v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(v)
	return f
}

// Resolve publishes v and returns true. A second call is a no-op
// returning false, the first value wins.
func (f *Future[T]) Resolve(v T) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.value = v
	f.resolved = true
	cbs := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(v)
	}
	return true
}

// Done is closed once the future resolves. Usable in select.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) IsResolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Value returns the resolved value without blocking.
func (f *Future[T]) Value() (T, bool) {
	select {
	case <-f.done:
		f.mu.Lock()
		v := f.value
		f.mu.Unlock()
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		v := f.value
		f.mu.Unlock()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnResolve registers fn to run once with the resolved value. If the
// future is already resolved, fn runs before OnResolve returns.
func (f *Future[T]) OnResolve(fn func(T)) {
	f.mu.Lock()
	if f.resolved {
		v := f.value
		f.mu.Unlock()
		fn(v)
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// Signal is a future carrying no value, only completion.
type Signal = Future[struct{}]

func NewSignal() *Signal {
	return NewFuture[struct{}]()
}

func ResolvedSignal() *Signal {
	return Resolved(struct{}{})
}

func (f *Future[T]) signal() {
	f.Resolve(*new(T))
}

// AllOf resolves once every input future has resolved, in whatever order.
// With no inputs it is already resolved.
func AllOf[T any](futures ...*Future[T]) *Signal {
	out := NewSignal()
	if len(futures) == 0 {
		out.signal()
		return out
	}
	remaining := int32(len(futures))
	for _, f := range futures {
		f.OnResolve(func(T) {
			if atomic.AddInt32(&remaining, -1) == 0 {
				out.signal()
			}
		})
	}
	return out
}

// Map derives a future that resolves to fn(v) once f resolves to v.
// fn runs inline on the resolving goroutine.
func Map[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	out := NewFuture[U]()
	f.OnResolve(func(v T) {
		out.Resolve(fn(v))
	})
	return out
}

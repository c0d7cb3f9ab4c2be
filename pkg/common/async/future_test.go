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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveOnce(t *testing.T) {
	f := NewFuture[int]()
	require.False(t, f.IsResolved())

	_, ok := f.Value()
	require.False(t, ok)

	require.True(t, f.Resolve(42))
	require.False(t, f.Resolve(43))

	require.True(t, f.IsResolved())
	v, ok := f.Value()
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestResolved(t *testing.T) {
	f := Resolved("x")
	require.True(t, f.IsResolved())

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "x", v)
}

func TestOnResolveFanOut(t *testing.T) {
	f := NewSignal()
	var fired int32

	for i := 0; i < 10; i++ {
		f.OnResolve(func(struct{}) {
			atomic.AddInt32(&fired, 1)
		})
	}
	require.Equal(t, int32(0), atomic.LoadInt32(&fired))

	f.Resolve(struct{}{})
	require.Equal(t, int32(10), atomic.LoadInt32(&fired))

	// late subscriber runs inline
	f.OnResolve(func(struct{}) {
		atomic.AddInt32(&fired, 1)
	})
	require.Equal(t, int32(11), atomic.LoadInt32(&fired))
}

func TestWaitCanceled(t *testing.T) {
	f := NewSignal()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAllOf(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		require.True(t, AllOf[struct{}]().IsResolved())
	})

	t.Run("any order", func(t *testing.T) {
		a, b, c := NewSignal(), NewSignal(), NewSignal()
		all := AllOf(a, b, c)

		c.Resolve(struct{}{})
		require.False(t, all.IsResolved())
		a.Resolve(struct{}{})
		require.False(t, all.IsResolved())
		b.Resolve(struct{}{})
		require.True(t, all.IsResolved())
	})

	t.Run("already resolved inputs", func(t *testing.T) {
		all := AllOf(ResolvedSignal(), ResolvedSignal())
		require.True(t, all.IsResolved())
	})
}

func TestMap(t *testing.T) {
	f := NewFuture[int]()
	m := Map(f, func(v int) int { return v * 2 })
	require.False(t, m.IsResolved())

	f.Resolve(21)
	v, ok := m.Value()
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestConcurrentResolve(t *testing.T) {
	f := NewFuture[int]()
	var wins int32

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		v := i
		go func() {
			defer wg.Done()
			if f.Resolve(v) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins)
	require.True(t, f.IsResolved())
}

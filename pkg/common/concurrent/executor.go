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

package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ThreadPoolExecutor splits nitems across a fixed number of workers and
// waits for all of them. The first error cancels the remaining workers
// through the derived context.
type ThreadPoolExecutor struct {
	nworkers int
}

func NewThreadPoolExecutor(nworkers int) ThreadPoolExecutor {
	if nworkers == 0 {
		nworkers = runtime.NumCPU()
	}
	return ThreadPoolExecutor{nworkers: nworkers}
}

func (e ThreadPoolExecutor) Execute(
	ctx context.Context,
	nitems int,
	fn func(ctx context.Context, worker int, start, end int) error) error {

	g, ctx := errgroup.WithContext(ctx)

	q := nitems / e.nworkers
	r := nitems % e.nworkers

	start := 0
	for i := 0; i < e.nworkers; i++ {
		size := q
		if i < r {
			size++
		}
		if size == 0 {
			break
		}

		worker := i
		curStart := start
		curEnd := start + size
		g.Go(func() error {
			return fn(ctx, worker, curStart, curEnd)
		})
		start = curEnd
	}

	return g.Wait()
}

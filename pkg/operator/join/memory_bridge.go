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

package join

import (
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/mduggan-starburst/trino/pkg/common/async"
	"github.com/mduggan-starburst/trino/pkg/common/moerr"
)

// MemoryJoinBridge is a self-contained build side for tests and the
// join-bench driver. Build appends positions, probes mark the positions
// they matched, the outer iterator walks whatever no probe touched.
type MemoryJoinBridge struct {
	mu       sync.Mutex
	rowCount uint64
	matched  *roaring.Bitmap
	valid    bool

	buildFinished *async.Signal
}

var _ JoinBridge = new(MemoryJoinBridge)

func NewMemoryJoinBridge() *MemoryJoinBridge {
	return &MemoryJoinBridge{
		matched:       roaring.New(),
		valid:         true,
		buildFinished: async.NewSignal(),
	}
}

// AddBuildRows extends the build side by n positions. Only valid while
// the build phase is still open.
func (b *MemoryJoinBridge) AddBuildRows(n int) error {
	if b.buildFinished.IsResolved() {
		return moerr.NewInvalidStateNoCtx("build rows added after build finished")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rowCount += uint64(n)
	return nil
}

// SetBuildComplete closes the build phase. Idempotent.
func (b *MemoryJoinBridge) SetBuildComplete() {
	b.buildFinished.Resolve(struct{}{})
}

// MarkMatched records that some probe row matched the build row at pos.
func (b *MemoryJoinBridge) MarkMatched(pos int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.valid {
		return moerr.NewInvalidStateNoCtx("join bridge already destroyed")
	}
	if pos < 0 || uint64(pos) >= b.rowCount {
		return moerr.NewInvalidArgNoCtx("build position", pos)
	}
	b.matched.Add(uint32(pos))
	return nil
}

func (b *MemoryJoinBridge) RowCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rowCount
}

func (b *MemoryJoinBridge) IsValid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid
}

func (b *MemoryJoinBridge) WhenBuildFinishes() *async.Signal {
	return b.buildFinished
}

func (b *MemoryJoinBridge) GetOuterPositionIterator() OuterPositionIterator {
	if !b.buildFinished.IsResolved() {
		panic(moerr.NewInvalidStateNoCtx("outer position iterator requested before build finished"))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.valid {
		panic(moerr.NewInvalidStateNoCtx("join bridge already destroyed"))
	}

	// unmatched = matched flipped over [0, rowCount), the same trick the
	// right-join finalize pass uses
	unmatched := b.matched.Clone()
	unmatched.Flip(0, b.rowCount)
	return &bitmapPositionIterator{it: unmatched.Iterator()}
}

func (b *MemoryJoinBridge) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.valid {
		panic(moerr.NewInvalidStateNoCtx("join bridge destroyed twice"))
	}
	b.matched = nil
	b.valid = false
}

type bitmapPositionIterator struct {
	it roaring.IntPeekable
}

func (i *bitmapPositionIterator) Next() (int64, bool) {
	if !i.it.HasNext() {
		return 0, false
	}
	return int64(i.it.Next()), true
}

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

package operator

import (
	"fmt"
	"sync"

	"github.com/mduggan-starburst/trino/pkg/common/async"
	"github.com/mduggan-starburst/trino/pkg/common/moerr"
)

// ReferenceCount tracks the live holders of a shared resource. The free
// future resolves exactly once, when the count first reaches zero; after
// that the count can never grow again, the resource is gone for good.
type ReferenceCount struct {
	mu       sync.Mutex
	count    int
	finished bool
	free     *async.Signal
}

func NewReferenceCount(initial int) *ReferenceCount {
	if initial < 0 {
		panic(fmt.Sprintf("negative initial reference count: %d", initial))
	}
	rc := &ReferenceCount{
		count: initial,
		free:  async.NewSignal(),
	}
	if initial == 0 {
		rc.finished = true
		rc.free.Resolve(struct{}{})
	}
	return rc
}

// Retain adds a holder. Retaining a freed resource is a caller bug.
func (rc *ReferenceCount) Retain() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.finished {
		return moerr.NewInvalidStateNoCtx("retain called on freed reference count")
	}
	rc.count++
	return nil
}

// Release drops a holder. Releasing past zero is a caller bug. When the
// count reaches zero the free future resolves, continuations run inline
// on this goroutine.
func (rc *ReferenceCount) Release() error {
	rc.mu.Lock()
	if rc.count == 0 {
		rc.mu.Unlock()
		return moerr.NewInvalidStateNoCtx("reference count released more than acquired")
	}
	rc.count--
	freed := rc.count == 0
	if freed {
		rc.finished = true
	}
	rc.mu.Unlock()

	// resolve outside the critical section, continuations may call back
	if freed {
		rc.free.Resolve(struct{}{})
	}
	return nil
}

// WhenFreed resolves once all holders are gone.
func (rc *ReferenceCount) WhenFreed() *async.Signal {
	return rc.free
}

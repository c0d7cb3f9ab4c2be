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
	"sync"

	"github.com/mduggan-starburst/trino/pkg/common/moerr"
)

// FreezeOnReadCounter separates a registration phase from a consumption
// phase: increments are allowed until the first Read, which freezes the
// count permanently. Read is idempotent afterwards.
type FreezeOnReadCounter struct {
	mu     sync.Mutex
	count  int
	frozen bool
}

func (c *FreezeOnReadCounter) Increment() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return moerr.NewInvalidStateNoCtx("counter has been read")
	}
	c.count++
	return nil
}

func (c *FreezeOnReadCounter) Read() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
	return c.count
}

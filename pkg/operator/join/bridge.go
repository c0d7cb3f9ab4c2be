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
	"github.com/mduggan-starburst/trino/pkg/common/async"
	"github.com/mduggan-starburst/trino/pkg/execution"
)

// OuterPositionIterator walks the build-side positions no probe matched.
// It is a finite, one-shot sequence.
type OuterPositionIterator interface {
	// Next returns the next unmatched build position, ok is false once
	// the sequence is exhausted.
	Next() (position int64, ok bool)
}

// JoinBridge is the build side of a hash join, shared by the build, probe
// and outer operators of one partition. The bridge manager decides when
// it dies; everything else about it is the bridge's own business.
type JoinBridge interface {
	// WhenBuildFinishes resolves once the build phase completes. It
	// resolves at most once, never again.
	WhenBuildFinishes() *async.Signal

	// GetOuterPositionIterator is valid only after build and probe have
	// both finished.
	GetOuterPositionIterator() OuterPositionIterator

	// Destroy frees the build-side memory. The lifecycle calls it
	// exactly once, after build, probe and outer have all finished.
	Destroy()
}

// BridgeProvider constructs the bridge of a lifespan. It is called once
// per lifespan the internal manager actually materializes.
type BridgeProvider func(execution.Lifespan) JoinBridge

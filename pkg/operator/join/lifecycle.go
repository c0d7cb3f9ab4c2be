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
	"github.com/mduggan-starburst/trino/pkg/common/moerr"
	"github.com/mduggan-starburst/trino/pkg/logutil"
	"github.com/mduggan-starburst/trino/pkg/operator"
)

// joinLifecycle ties one bridge to the reference counts of its two
// consumer classes and destroys the bridge once everything is done.
type joinLifecycle struct {
	probeReferenceCount *operator.ReferenceCount
	outerReferenceCount *operator.ReferenceCount

	whenBuildAndProbeFinishes *async.Signal
	whenAllFinishes           *async.Signal
}

func newJoinLifecycle(bridge JoinBridge, probeFactoryCount, outerFactoryCount int) (*joinLifecycle, error) {
	// When all probe and outer operators finish, destroy the join bridge
	// (freeing the memory).
	// * Each outer operator factory counts as 1.
	//   * There is at most 1 outer operator factory.
	// * Each outer operator counts as 1.
	if outerFactoryCount != 0 && outerFactoryCount != 1 {
		return nil, moerr.NewInvalidArgNoCtx("outerFactoryCount", outerFactoryCount)
	}
	outerReferenceCount := operator.NewReferenceCount(outerFactoryCount)

	// * Each probe operator factory counts as 1.
	// * Each probe operator counts as 1.
	probeReferenceCount := operator.NewReferenceCount(probeFactoryCount)

	whenBuildAndProbeFinishes := async.AllOf(bridge.WhenBuildFinishes(), probeReferenceCount.WhenFreed())
	whenAllFinishes := async.AllOf(whenBuildAndProbeFinishes, outerReferenceCount.WhenFreed())
	whenAllFinishes.OnResolve(func(struct{}) {
		logutil.Debug("destroying join bridge")
		bridge.Destroy()
	})

	return &joinLifecycle{
		probeReferenceCount:       probeReferenceCount,
		outerReferenceCount:       outerReferenceCount,
		whenBuildAndProbeFinishes: whenBuildAndProbeFinishes,
		whenAllFinishes:           whenAllFinishes,
	}, nil
}

func (l *joinLifecycle) whenBuildAndProbeFinish() *async.Signal {
	return l.whenBuildAndProbeFinishes
}

func (l *joinLifecycle) retainForProbe() error {
	return l.probeReferenceCount.Retain()
}

func (l *joinLifecycle) releaseForProbe() error {
	return l.probeReferenceCount.Release()
}

func (l *joinLifecycle) retainForOuter() error {
	return l.outerReferenceCount.Retain()
}

func (l *joinLifecycle) releaseForOuter() error {
	return l.outerReferenceCount.Release()
}

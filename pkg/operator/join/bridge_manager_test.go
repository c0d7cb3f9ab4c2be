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
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mduggan-starburst/trino/pkg/common/async"
	"github.com/mduggan-starburst/trino/pkg/common/moerr"
	"github.com/mduggan-starburst/trino/pkg/container/types"
	"github.com/mduggan-starburst/trino/pkg/execution"
)

// testJoinBridge is a hand-rolled fake with explicit build control and a
// destroy counter.
type testJoinBridge struct {
	buildFinished *async.Signal
	destroyed     int32
}

func newTestJoinBridge() *testJoinBridge {
	return &testJoinBridge{buildFinished: async.NewSignal()}
}

func (b *testJoinBridge) WhenBuildFinishes() *async.Signal {
	return b.buildFinished
}

func (b *testJoinBridge) GetOuterPositionIterator() OuterPositionIterator {
	return &slicePositionIterator{}
}

type slicePositionIterator struct {
	positions []int64
}

func (i *slicePositionIterator) Next() (int64, bool) {
	if len(i.positions) == 0 {
		return 0, false
	}
	pos := i.positions[0]
	i.positions = i.positions[1:]
	return pos, true
}

func (b *testJoinBridge) Destroy() {
	atomic.AddInt32(&b.destroyed, 1)
}

func (b *testJoinBridge) destroyCount() int32 {
	return atomic.LoadInt32(&b.destroyed)
}

func (b *testJoinBridge) finishBuild() {
	b.buildFinished.Resolve(struct{}{})
}

func TestJoinLifecycleOuterFactoryCountValidation(t *testing.T) {
	_, err := newJoinLifecycle(newTestJoinBridge(), 0, 2)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, err = newJoinLifecycle(newTestJoinBridge(), 0, -1)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

func TestJoinLifecycleDestroyOrderIndependent(t *testing.T) {
	// build finished, probe freed, outer freed, in every order: destroy
	// fires exactly once, after the last of the three
	permutations := [][3]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	for _, perm := range permutations {
		bridge := newTestJoinBridge()
		lifecycle, err := newJoinLifecycle(bridge, 1, 1)
		require.NoError(t, err)

		events := [3]func(){
			func() { bridge.finishBuild() },
			func() { require.NoError(t, lifecycle.releaseForProbe()) },
			func() { require.NoError(t, lifecycle.releaseForOuter()) },
		}
		for _, idx := range perm {
			require.Equal(t, int32(0), bridge.destroyCount(), "perm %v fired early", perm)
			events[idx]()
		}
		require.Equal(t, int32(1), bridge.destroyCount(), "perm %v", perm)
	}
}

func TestJoinLifecycleDestroyWithoutOperators(t *testing.T) {
	// a build-only query never creates probe or outer operators, destroy
	// must still fire on build completion
	bridge := newTestJoinBridge()
	_, err := newJoinLifecycle(bridge, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int32(0), bridge.destroyCount())

	bridge.finishBuild()
	require.Equal(t, int32(1), bridge.destroyCount())
}

func TestScenarioTwoProbeFactories(t *testing.T) {
	bridge := newTestJoinBridge()
	mgr := NewJoinBridgeManager(false,
		func(execution.Lifespan) JoinBridge { return bridge },
		[]types.Type{types.T_int64.ToType()})

	require.NoError(t, mgr.IncrementProbeFactoryCount())
	require.NoError(t, mgr.IncrementProbeFactoryCount())

	ls := execution.TaskWide()
	require.NoError(t, mgr.ProbeOperatorCreated(ls))
	require.NoError(t, mgr.ProbeOperatorCreated(ls))
	require.NoError(t, mgr.ProbeOperatorClosed(ls))
	require.NoError(t, mgr.ProbeOperatorClosed(ls))
	require.NoError(t, mgr.ProbeOperatorFactoryClosed(ls))
	require.Equal(t, int32(0), bridge.destroyCount())
	require.NoError(t, mgr.ProbeOperatorFactoryClosed(ls))
	require.NoError(t, mgr.ProbeOperatorFactoryClosedForAllLifespans())
	require.Equal(t, int32(0), bridge.destroyCount())

	bridge.finishBuild()
	require.Equal(t, int32(1), bridge.destroyCount())
}

func TestScenarioOuterOnly(t *testing.T) {
	// zero probe factories: the probe class is satisfied from the start,
	// destroy waits on outer and build only
	bridge := newTestJoinBridge()
	mgr := NewJoinBridgeManager(true,
		func(execution.Lifespan) JoinBridge { return bridge },
		nil)

	ls := execution.TaskWide()
	require.NoError(t, mgr.OuterOperatorCreated(ls))
	require.NoError(t, mgr.OuterOperatorClosed(ls))
	bridge.finishBuild()
	require.Equal(t, int32(0), bridge.destroyCount())

	require.NoError(t, mgr.OuterOperatorFactoryClosed(ls))
	require.Equal(t, int32(1), bridge.destroyCount())
}

func TestScenarioOuterPositionsFuture(t *testing.T) {
	bridge := NewMemoryJoinBridge()
	require.NoError(t, bridge.AddBuildRows(8))

	mgr := NewJoinBridgeManager(true,
		func(execution.Lifespan) JoinBridge { return bridge },
		[]types.Type{types.T_varchar.ToType()})
	require.NoError(t, mgr.IncrementProbeFactoryCount())

	ls := execution.TaskWide()
	future, err := mgr.GetOuterPositionsFuture(ls)
	require.NoError(t, err)
	require.False(t, future.IsResolved())

	require.NoError(t, mgr.ProbeOperatorCreated(ls))
	require.NoError(t, bridge.MarkMatched(1))
	require.NoError(t, bridge.MarkMatched(3))
	require.NoError(t, bridge.MarkMatched(4))
	require.NoError(t, mgr.ProbeOperatorClosed(ls))

	bridge.SetBuildComplete()
	require.False(t, future.IsResolved())

	// last probe holder gone, build finished: the future must resolve
	require.NoError(t, mgr.ProbeOperatorFactoryClosed(ls))
	require.True(t, future.IsResolved())

	it, err := future.Wait(context.Background())
	require.NoError(t, err)

	var unmatched []int64
	for {
		pos, ok := it.Next()
		if !ok {
			break
		}
		unmatched = append(unmatched, pos)
	}
	require.Equal(t, []int64{0, 2, 5, 6, 7}, unmatched)

	// bridge survives until the outer side finishes
	require.True(t, bridge.IsValid())
	require.NoError(t, mgr.OuterOperatorFactoryClosed(ls))
	require.False(t, bridge.IsValid())
}

func TestScenarioReleasePastZero(t *testing.T) {
	mgr := NewJoinBridgeManager(false,
		func(execution.Lifespan) JoinBridge { return newTestJoinBridge() },
		nil)
	require.NoError(t, mgr.IncrementProbeFactoryCount())

	ls := execution.TaskWide()
	require.NoError(t, mgr.ProbeOperatorFactoryClosed(ls))

	err := mgr.ProbeOperatorClosed(ls)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
}

func TestLazyInitializationExactlyOnce(t *testing.T) {
	var providerCalls int32
	mgr := NewJoinBridgeManager(false,
		func(execution.Lifespan) JoinBridge {
			atomic.AddInt32(&providerCalls, 1)
			// construction is deliberately slow to widen the race window
			time.Sleep(time.Millisecond)
			return newTestJoinBridge()
		},
		nil)
	require.NoError(t, mgr.IncrementProbeFactoryCount())

	const drivers = 64
	bridges := make([]JoinBridge, drivers)
	var failures int32

	wg := sync.WaitGroup{}
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			bridge, err := mgr.GetJoinBridge(execution.TaskWide())
			if err != nil {
				atomic.AddInt32(&failures, 1)
				return
			}
			bridges[i] = bridge
		}()
	}
	wg.Wait()

	require.Equal(t, int32(0), failures)
	require.Equal(t, int32(1), providerCalls)
	for i := 1; i < drivers; i++ {
		require.Same(t, bridges[0], bridges[i])
	}
}

func TestProbeFactoryRegistrationClosesOnInit(t *testing.T) {
	mgr := NewJoinBridgeManager(false,
		func(execution.Lifespan) JoinBridge { return newTestJoinBridge() },
		nil)
	require.NoError(t, mgr.IncrementProbeFactoryCount())

	_, err := mgr.GetJoinBridge(execution.TaskWide())
	require.NoError(t, err)

	err = mgr.IncrementProbeFactoryCount()
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
}

func TestUnknownLifespanRejected(t *testing.T) {
	mgr := NewJoinBridgeManager(false,
		func(execution.Lifespan) JoinBridge { return newTestJoinBridge() },
		nil)

	grouped := execution.DriverGroup(7)

	_, err := mgr.GetJoinBridge(grouped)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	err = mgr.ProbeOperatorCreated(grouped)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, err = mgr.GetOuterPositionsFuture(grouped)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))
}

func TestLookupAllAtOnce(t *testing.T) {
	bridge := newTestJoinBridge()
	outputTypes := []types.Type{types.T_int32.ToType(), types.T_varchar.ToType()}
	mgr := LookupAllAtOnce(bridge, outputTypes)
	require.Equal(t, outputTypes, mgr.GetBuildOutputTypes())

	got, err := mgr.GetJoinBridge(execution.TaskWide())
	require.NoError(t, err)
	require.Same(t, bridge, got)
}

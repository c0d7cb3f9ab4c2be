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
	"sync/atomic"

	"github.com/mduggan-starburst/trino/pkg/common/async"
	"github.com/mduggan-starburst/trino/pkg/common/moerr"
	"github.com/mduggan-starburst/trino/pkg/container/types"
	"github.com/mduggan-starburst/trino/pkg/execution"
	"github.com/mduggan-starburst/trino/pkg/logutil"
	"github.com/mduggan-starburst/trino/pkg/operator"
)

// JoinBridgeManager coordinates the lifetime of the join bridges of one
// join node. Probe factories register during planning; the first
// lifecycle call freezes the registration count and builds the internal
// manager exactly once, no matter how many drivers race on it.
type JoinBridgeManager struct {
	buildOuter       bool
	provider         BridgeProvider
	buildOutputTypes []types.Type

	probeFactoryCount operator.FreezeOnReadCounter

	initialized atomic.Bool
	initMu      sync.Mutex
	internal    internalJoinBridgeDataManager
}

func NewJoinBridgeManager(buildOuter bool, provider BridgeProvider, buildOutputTypes []types.Type) *JoinBridgeManager {
	if provider == nil {
		panic("join bridge provider is nil")
	}
	return &JoinBridgeManager{
		buildOuter:       buildOuter,
		provider:         provider,
		buildOutputTypes: buildOutputTypes,
	}
}

// LookupAllAtOnce wraps a single prebuilt bridge in a manager, for joins
// that never partition and for tests.
func LookupAllAtOnce(bridge JoinBridge, buildOutputTypes []types.Type) *JoinBridgeManager {
	return NewJoinBridgeManager(
		false,
		func(execution.Lifespan) JoinBridge { return bridge },
		buildOutputTypes)
}

func (m *JoinBridgeManager) GetBuildOutputTypes() []types.Type {
	return m.buildOutputTypes
}

// IncrementProbeFactoryCount registers one more probe operator factory.
// Only valid before the first lifecycle call froze the count.
func (m *JoinBridgeManager) IncrementProbeFactoryCount() error {
	return m.probeFactoryCount.Increment()
}

func (m *JoinBridgeManager) initializeIfNecessary() error {
	if m.initialized.Load() {
		return nil
	}
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.initialized.Load() {
		return nil
	}

	finalProbeFactoryCount := m.probeFactoryCount.Read()
	outerFactoryCount := 0
	if m.buildOuter {
		outerFactoryCount = 1
	}
	internal, err := newTaskWideJoinBridgeDataManager(m.provider, finalProbeFactoryCount, outerFactoryCount)
	if err != nil {
		return err
	}
	m.internal = internal
	m.initialized.Store(true)

	logutil.Debug("join bridge manager initialized")
	return nil
}

func (m *JoinBridgeManager) GetJoinBridge(lifespan execution.Lifespan) (JoinBridge, error) {
	if err := m.initializeIfNecessary(); err != nil {
		return nil, err
	}
	return m.internal.getJoinBridge(lifespan)
}

// ProbeOperatorFactoryClosedForAllLifespans is invoked once no probe
// operator factory will create operators for any lifespan. It is
// expected only after ProbeOperatorFactoryClosed has been invoked for
// every known lifespan.
func (m *JoinBridgeManager) ProbeOperatorFactoryClosedForAllLifespans() error {
	if err := m.initializeIfNecessary(); err != nil {
		return err
	}
	return m.internal.probeOperatorFactoryClosedForAllLifespans()
}

func (m *JoinBridgeManager) ProbeOperatorFactoryClosed(lifespan execution.Lifespan) error {
	if err := m.initializeIfNecessary(); err != nil {
		return err
	}
	return m.internal.probeOperatorFactoryClosed(lifespan)
}

func (m *JoinBridgeManager) ProbeOperatorCreated(lifespan execution.Lifespan) error {
	if err := m.initializeIfNecessary(); err != nil {
		return err
	}
	return m.internal.probeOperatorCreated(lifespan)
}

func (m *JoinBridgeManager) ProbeOperatorClosed(lifespan execution.Lifespan) error {
	if err := m.initializeIfNecessary(); err != nil {
		return err
	}
	return m.internal.probeOperatorClosed(lifespan)
}

func (m *JoinBridgeManager) OuterOperatorFactoryClosed(lifespan execution.Lifespan) error {
	if err := m.initializeIfNecessary(); err != nil {
		return err
	}
	return m.internal.outerOperatorFactoryClosed(lifespan)
}

func (m *JoinBridgeManager) OuterOperatorCreated(lifespan execution.Lifespan) error {
	if err := m.initializeIfNecessary(); err != nil {
		return err
	}
	return m.internal.outerOperatorCreated(lifespan)
}

func (m *JoinBridgeManager) OuterOperatorClosed(lifespan execution.Lifespan) error {
	if err := m.initializeIfNecessary(); err != nil {
		return err
	}
	return m.internal.outerOperatorClosed(lifespan)
}

func (m *JoinBridgeManager) GetOuterPositionsFuture(lifespan execution.Lifespan) (*async.Future[OuterPositionIterator], error) {
	if err := m.initializeIfNecessary(); err != nil {
		return nil, err
	}
	return m.internal.getOuterPositionsFuture(lifespan)
}

// internalJoinBridgeDataManager hides how many bridges exist and how
// they map to lifespans. The task-wide implementation below is the only
// one today; a per-lifespan implementation for grouped execution slots
// in behind the same interface without touching the facade.
type internalJoinBridgeDataManager interface {
	getJoinBridge(lifespan execution.Lifespan) (JoinBridge, error)

	getOuterPositionsFuture(lifespan execution.Lifespan) (*async.Future[OuterPositionIterator], error)

	probeOperatorFactoryClosedForAllLifespans() error

	probeOperatorFactoryClosed(lifespan execution.Lifespan) error

	probeOperatorCreated(lifespan execution.Lifespan) error

	probeOperatorClosed(lifespan execution.Lifespan) error

	outerOperatorFactoryClosed(lifespan execution.Lifespan) error

	outerOperatorCreated(lifespan execution.Lifespan) error

	outerOperatorClosed(lifespan execution.Lifespan) error
}

// 1 bridge, 1 lifecycle, the whole task
type taskWideJoinBridgeDataManager struct {
	bridge    JoinBridge
	lifecycle *joinLifecycle
}

func newTaskWideJoinBridgeDataManager(provider BridgeProvider, probeFactoryCount, outerFactoryCount int) (*taskWideJoinBridgeDataManager, error) {
	bridge := provider(execution.TaskWide())
	lifecycle, err := newJoinLifecycle(bridge, probeFactoryCount, outerFactoryCount)
	if err != nil {
		return nil, err
	}
	return &taskWideJoinBridgeDataManager{
		bridge:    bridge,
		lifecycle: lifecycle,
	}, nil
}

func (m *taskWideJoinBridgeDataManager) checkLifespan(lifespan execution.Lifespan) error {
	if !lifespan.IsTaskWide() {
		return moerr.NewInvalidArgNoCtx("lifespan", lifespan.String())
	}
	return nil
}

func (m *taskWideJoinBridgeDataManager) getJoinBridge(lifespan execution.Lifespan) (JoinBridge, error) {
	if err := m.checkLifespan(lifespan); err != nil {
		return nil, err
	}
	return m.bridge, nil
}

func (m *taskWideJoinBridgeDataManager) getOuterPositionsFuture(lifespan execution.Lifespan) (*async.Future[OuterPositionIterator], error) {
	if err := m.checkLifespan(lifespan); err != nil {
		return nil, err
	}
	return async.Map(m.lifecycle.whenBuildAndProbeFinish(), func(struct{}) OuterPositionIterator {
		return m.bridge.GetOuterPositionIterator()
	}), nil
}

func (m *taskWideJoinBridgeDataManager) probeOperatorFactoryClosedForAllLifespans() error {
	// hook point reserved for a per-lifespan implementation, nothing to
	// do with a single partition
	return nil
}

func (m *taskWideJoinBridgeDataManager) probeOperatorFactoryClosed(lifespan execution.Lifespan) error {
	if err := m.checkLifespan(lifespan); err != nil {
		return err
	}
	return m.lifecycle.releaseForProbe()
}

func (m *taskWideJoinBridgeDataManager) probeOperatorCreated(lifespan execution.Lifespan) error {
	if err := m.checkLifespan(lifespan); err != nil {
		return err
	}
	return m.lifecycle.retainForProbe()
}

func (m *taskWideJoinBridgeDataManager) probeOperatorClosed(lifespan execution.Lifespan) error {
	if err := m.checkLifespan(lifespan); err != nil {
		return err
	}
	return m.lifecycle.releaseForProbe()
}

func (m *taskWideJoinBridgeDataManager) outerOperatorFactoryClosed(lifespan execution.Lifespan) error {
	if err := m.checkLifespan(lifespan); err != nil {
		return err
	}
	return m.lifecycle.releaseForOuter()
}

func (m *taskWideJoinBridgeDataManager) outerOperatorCreated(lifespan execution.Lifespan) error {
	if err := m.checkLifespan(lifespan); err != nil {
		return err
	}
	return m.lifecycle.retainForOuter()
}

func (m *taskWideJoinBridgeDataManager) outerOperatorClosed(lifespan execution.Lifespan) error {
	if err := m.checkLifespan(lifespan); err != nil {
		return err
	}
	return m.lifecycle.releaseForOuter()
}

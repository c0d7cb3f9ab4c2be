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

// join-bench drives a simulated hash join through the join bridge
// manager: one build phase, many concurrent probe operators, an
// optional outer pass, and verifies the bridge dies exactly when the
// last consumer is gone.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/mduggan-starburst/trino/pkg/common/async"
	"github.com/mduggan-starburst/trino/pkg/common/concurrent"
	"github.com/mduggan-starburst/trino/pkg/config"
	"github.com/mduggan-starburst/trino/pkg/container/types"
	"github.com/mduggan-starburst/trino/pkg/execution"
	"github.com/mduggan-starburst/trino/pkg/logutil"
	"github.com/mduggan-starburst/trino/pkg/operator/join"
)

var configFile = flag.String("config", "", "toml config file, defaults apply when empty")

func main() {
	flag.Parse()

	params := &config.Parameters{}
	if *configFile != "" {
		if err := config.LoadvarsConfigFromFile(*configFile, params); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	params.SetDefaultValues()
	logutil.SetupGlobalLogger(&params.Log)

	if err := run(context.Background(), params); err != nil {
		logutil.Error("join-bench failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, params *config.Parameters) error {
	start := time.Now()

	var bridge *join.MemoryJoinBridge
	mgr := join.NewJoinBridgeManager(params.BuildOuter,
		func(execution.Lifespan) join.JoinBridge {
			bridge = join.NewMemoryJoinBridge()
			return bridge
		},
		[]types.Type{types.T_int64.ToType(), types.T_varchar.ToType()})

	// one probe operator factory, registered at planning time
	if err := mgr.IncrementProbeFactoryCount(); err != nil {
		return err
	}

	ls := execution.TaskWide()

	// the outer pass subscribes before anything has even been built
	var outerFuture *async.Future[join.OuterPositionIterator]
	if params.BuildOuter {
		f, err := mgr.GetOuterPositionsFuture(ls)
		if err != nil {
			return err
		}
		outerFuture = f
		if err := mgr.OuterOperatorCreated(ls); err != nil {
			return err
		}
	}

	if err := buildPhase(ctx, mgr, params.BuildRows); err != nil {
		return err
	}

	if err := probePhase(mgr, params); err != nil {
		return err
	}
	if err := mgr.ProbeOperatorFactoryClosed(ls); err != nil {
		return err
	}
	if err := mgr.ProbeOperatorFactoryClosedForAllLifespans(); err != nil {
		return err
	}

	if params.BuildOuter {
		it, err := outerFuture.Wait(ctx)
		if err != nil {
			return err
		}
		unmatched := int64(0)
		for {
			if _, ok := it.Next(); !ok {
				break
			}
			unmatched++
		}
		logutil.Info("outer pass done", zap.Int64("unmatchedRows", unmatched))

		if err := mgr.OuterOperatorClosed(ls); err != nil {
			return err
		}
		if err := mgr.OuterOperatorFactoryClosed(ls); err != nil {
			return err
		}
	}

	if bridge.IsValid() {
		logutil.Error("join bridge survived its last consumer")
		return fmt.Errorf("join bridge not destroyed")
	}
	logutil.Info("join bridge destroyed",
		zap.Int("buildRows", params.BuildRows),
		zap.Int("probeParallelism", params.ProbeParallelism),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func buildPhase(ctx context.Context, mgr *join.JoinBridgeManager, buildRows int) error {
	raw, err := mgr.GetJoinBridge(execution.TaskWide())
	if err != nil {
		return err
	}
	bridge := raw.(*join.MemoryJoinBridge)

	// the build itself is embarrassingly parallel, append in chunks
	executor := concurrent.NewThreadPoolExecutor(0)
	err = executor.Execute(ctx, buildRows,
		func(_ context.Context, _ int, start, end int) error {
			return bridge.AddBuildRows(end - start)
		})
	if err != nil {
		return err
	}
	bridge.SetBuildComplete()
	logutil.Debug("build phase finished", zap.Uint64("rows", bridge.RowCount()))
	return nil
}

func probePhase(mgr *join.JoinBridgeManager, params *config.Parameters) error {
	ls := execution.TaskWide()
	raw, err := mgr.GetJoinBridge(ls)
	if err != nil {
		return err
	}
	bridge := raw.(*join.MemoryJoinBridge)

	pool, err := ants.NewPool(params.ProbeParallelism)
	if err != nil {
		return err
	}
	defer pool.Release()

	rowsPerOperator := params.BuildRows / params.ProbeParallelism

	errCh := make(chan error, params.ProbeParallelism)
	wg := sync.WaitGroup{}
	for i := 0; i < params.ProbeParallelism; i++ {
		if err := mgr.ProbeOperatorCreated(ls); err != nil {
			return err
		}

		seed := int64(i)
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			errCh <- runProbeOperator(mgr, bridge, seed, rowsPerOperator, params.MatchPercent)
		})
		if submitErr != nil {
			wg.Done()
			return submitErr
		}
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	logutil.Debug("probe phase finished", zap.Int("operators", params.ProbeParallelism))
	return nil
}

// runProbeOperator plays one probe driver: match a random subset of the
// build side, then close.
func runProbeOperator(mgr *join.JoinBridgeManager, bridge *join.MemoryJoinBridge, seed int64, rows, matchPercent int) error {
	rnd := rand.New(rand.NewSource(seed))
	rowCount := int64(bridge.RowCount())
	for i := 0; i < rows; i++ {
		if rnd.Intn(100) >= matchPercent {
			continue
		}
		if err := bridge.MarkMatched(rnd.Int63n(rowCount)); err != nil {
			return err
		}
	}
	return mgr.ProbeOperatorClosed(execution.TaskWide())
}

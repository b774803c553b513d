// Copyright 2024 The slimchain-go Authors
// This file is part of the slimchain-go library.
//
// The slimchain-go library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The slimchain-go library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the slimchain-go library. If not, see <http://www.gnu.org/licenses/>.

package txengine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimchain-go/slimchain/common"
)

// echoWorker returns an Output whose Receipt is the task's own payload,
// after an artificial delay so tasks submitted back-to-back genuinely
// overlap across the pool rather than completing in lockstep.
type echoWorker struct{ delay time.Duration }

func (w echoWorker) Execute(task Task) (*Output, error) {
	time.Sleep(w.delay)
	return &Output{TaskID: task.ID, Receipt: task.TxPayload}, nil
}

type failingWorker struct{}

func (failingWorker) Execute(task Task) (*Output, error) {
	return nil, ErrEngineClosed
}

func TestEngineExecutesAllSubmittedTasks(t *testing.T) {
	e := NewEngine(4, func() Worker { return echoWorker{delay: time.Millisecond} })
	defer e.Shutdown()

	const n = 50
	for i := 0; i < n; i++ {
		e.PushTask(NewTask(1, common.ZeroH256, []byte{byte(i)}))
	}

	seen := make(map[byte]bool)
	for i := 0; i < n; i++ {
		out := e.PopOrWaitResult()
		require.NotNil(t, out)
		seen[out.Receipt[0]] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, 0, e.RemainingTasks())
}

func TestEngineRemainingTasksTracksFailures(t *testing.T) {
	e := NewEngine(2, func() Worker { return failingWorker{} })
	defer e.Shutdown()

	e.PushTask(NewTask(1, common.ZeroH256, nil))
	e.PushTask(NewTask(1, common.ZeroH256, nil))

	require.Eventually(t, func() bool { return e.RemainingTasks() == 0 }, time.Second, time.Millisecond)

	_, ok := e.PopResult()
	assert.False(t, ok)
}

func TestEnginePopResultNonBlockingWhenEmpty(t *testing.T) {
	e := NewEngine(1, func() Worker { return echoWorker{delay: 0} })
	defer e.Shutdown()

	_, ok := e.PopResult()
	assert.False(t, ok)
}

func TestEngineShutdownCompletesAfterDrainingWork(t *testing.T) {
	e := NewEngine(2, func() Worker { return echoWorker{delay: 0} })

	e.PushTask(NewTask(1, common.ZeroH256, []byte("before")))
	_ = e.PopOrWaitResult()

	e.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Once every worker goroutine has returned, a further PushTask would
		// only sit in the injector with no worker to run it; this test
		// exercises only that the shutdown handshake itself completes.
	}()
	wg.Wait()
}

func TestNewTaskAssignsIncreasingIDs(t *testing.T) {
	a := NewTask(1, common.ZeroH256, nil)
	b := NewTask(1, common.ZeroH256, nil)
	assert.Less(t, uint32(a.ID), uint32(b.ID))
}

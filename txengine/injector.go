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

import "sync"

// injector is the global task queue every newly-pushed Task lands in
// first, the Go counterpart of crossbeam::deque::Injector. Workers consult
// it once their own local deque is empty, before stealing from a peer's
// deque, draining a batch at a time rather than one task at a time so a
// freshly-woken worker doesn't immediately re-contend on the same mutex.
type injector struct {
	mu sync.Mutex
	q  []Task
}

func newInjector() *injector {
	return &injector{}
}

func (i *injector) push(t Task) {
	i.mu.Lock()
	i.q = append(i.q, t)
	i.mu.Unlock()
}

// stealBatch removes up to max tasks from the front of the queue in FIFO
// order, the moral equivalent of Injector::steal_batch_and_pop.
func (i *injector) stealBatch(max int) []Task {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.q) == 0 {
		return nil
	}
	if max > len(i.q) {
		max = len(i.q)
	}
	batch := append([]Task(nil), i.q[:max]...)
	i.q = i.q[max:]
	return batch
}

func (i *injector) len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.q)
}

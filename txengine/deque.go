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

// workerDeque is a worker's local task queue: the owner pushes and pops
// from the bottom (LIFO, favoring the task it was just given), while other
// workers steal from the top (FIFO) when they run dry. crossbeam's Worker/
// Stealer pair achieves this lock-free with a resizable ring buffer; no
// lock-free deque is available anywhere in the example pack's dependency
// set, so this is a mutex-guarded slice instead. Correctness-equivalent,
// not lock-free — documented as a deliberate simplification.
type workerDeque struct {
	mu    sync.Mutex
	items []Task
}

func newWorkerDeque() *workerDeque {
	return &workerDeque{}
}

func (d *workerDeque) pushBottom(t Task) {
	d.mu.Lock()
	d.items = append(d.items, t)
	d.mu.Unlock()
}

func (d *workerDeque) popBottom() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items)
	if n == 0 {
		return Task{}, false
	}
	t := d.items[n-1]
	d.items = d.items[:n-1]
	return t, true
}

// stealHalf removes up to half of the queue (at least one, if non-empty)
// from the top, the deque-to-deque analogue of Stealer::steal_batch.
func (d *workerDeque) stealHalf() []Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items)
	if n == 0 {
		return nil
	}
	take := n / 2
	if take == 0 {
		take = 1
	}
	stolen := append([]Task(nil), d.items[:take]...)
	d.items = d.items[take:]
	return stolen
}

func (d *workerDeque) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

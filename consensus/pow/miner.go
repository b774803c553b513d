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

package pow

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/slimchain-go/slimchain/chain"
	"github.com/slimchain-go/slimchain/log"
)

var minerLog = log.NewModuleLogger("consensus/pow")

// Task is a not-yet-mined block: the header fields the client has already
// settled (height, parent hash, state root, tx list hash) minus the PoW
// payload, which Miner fills in.
type Task struct {
	Header *chain.BlockHeader
	Prev   *chain.BlockHeader
}

// Result is what a completed mining attempt produces. An attempt cancelled
// by Stop before it finds a valid nonce sends no Result at all.
type Result struct {
	Header *chain.BlockHeader
}

// Miner runs the nonce search on a single goroutine, the Go-idiomatic
// equivalent of the original's busy loop over an atomic nonce counter.
// Its Start/Stop/workCh structure is adapted from the teacher's CpuAgent
// (work/agent.go): an atomic running flag, a buffered work channel, and a
// per-task cancellation channel so a newly submitted task preempts
// whatever is currently being mined.
type Miner struct {
	mu sync.Mutex

	workCh   chan *Task
	stop     chan struct{}
	quitCur  chan struct{}
	returnCh chan<- *Result

	running int32
}

func NewMiner(returnCh chan<- *Result) *Miner {
	return &Miner{
		workCh:   make(chan *Task, 1),
		stop:     make(chan struct{}, 1),
		returnCh: returnCh,
	}
}

func (m *Miner) Work() chan<- *Task { return m.workCh }

func (m *Miner) Start() {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return
	}
	go m.loop()
}

func (m *Miner) Stop() {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return
	}
	m.stop <- struct{}{}
}

func (m *Miner) loop() {
	for {
		select {
		case task := <-m.workCh:
			m.mu.Lock()
			if m.quitCur != nil {
				close(m.quitCur)
			}
			m.quitCur = make(chan struct{})
			go m.mine(task, m.quitCur)
			m.mu.Unlock()
		case <-m.stop:
			m.mu.Lock()
			if m.quitCur != nil {
				close(m.quitCur)
				m.quitCur = nil
			}
			m.mu.Unlock()
			return
		}
	}
}

// mine implements the original's create_new_block loop: recompute the
// timestamp and retargeted difficulty on every attempt (since the
// difficulty formula is itself timestamp-dependent), then increment the
// nonce until the header's hash clears the PoW threshold.
func (m *Miner) mine(task *Task, quit <-chan struct{}) {
	prevData, err := DecodeConsensusData(task.Prev.ConsensusData)
	if err != nil {
		minerLog.Error("mining task has an undecodable parent", "err", err)
		return
	}

	header := *task.Header
	var nonce uint64
	for {
		select {
		case <-quit:
			return
		default:
		}

		header.Timestamp = uint64(time.Now().Unix())
		diff := computeDiff(header.Timestamp, task.Prev.Timestamp, prevData.Diff)
		header.ConsensusData = ConsensusData{Diff: diff, Nonce: nonce}.Encode()

		if nonceIsValid(header.Hash(), diff) {
			minerLog.Info("mined block", "height", header.Height, "diff", diff, "nonce", nonce)
			result := header
			m.returnCh <- &Result{Header: &result}
			return
		}
		nonce++
	}
}

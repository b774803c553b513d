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

// Package pow implements the proof-of-work consensus engine described in
// spec.md §4.4: Ethereum-style difficulty retargeting with a PoW nonce
// search, used when the chain runs in single-client mode instead of the
// Raft-backed multi-client mode (consensus/raft).
package pow

import (
	"github.com/slimchain-go/slimchain/chain"
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/wireformat"
)

// Config mirrors the original's PoWConfig: the only tunable is the genesis
// block's starting difficulty.
type Config struct {
	InitDiff uint64
}

// DefaultConfig matches the difficulty the original ships as a default.
var DefaultConfig = Config{InitDiff: 0x4000}

// ConsensusData is the PoW-specific payload carried opaquely in
// chain.BlockHeader.ConsensusData.
type ConsensusData struct {
	Diff  uint64
	Nonce uint64
}

func (c ConsensusData) Encode() []byte {
	enc := wireformat.NewEncoder()
	enc.WriteUvarint(c.Diff)
	enc.WriteUvarint(c.Nonce)
	return enc.Bytes()
}

func DecodeConsensusData(b []byte) (ConsensusData, error) {
	dec := wireformat.NewDecoder(b)
	diff, err := dec.ReadUvarint()
	if err != nil {
		return ConsensusData{}, err
	}
	nonce, err := dec.ReadUvarint()
	if err != nil {
		return ConsensusData{}, err
	}
	return ConsensusData{Diff: diff, Nonce: nonce}, nil
}

// GenesisHeader builds the chain's height-0 header, seeded with cfg's
// starting difficulty and a zero nonce.
func GenesisHeader(cfg Config, timestamp uint64, stateRoot common.H256) *chain.BlockHeader {
	h := &chain.BlockHeader{
		Height:     0,
		PrevHash:   common.ZeroH256,
		StateRoot:  stateRoot,
		TxListHash: common.ZeroH256,
		Timestamp:  timestamp,
	}
	h.ConsensusData = ConsensusData{Diff: cfg.InitDiff, Nonce: 0}.Encode()
	return h
}

// computeDiff implements the original's Ethereum-derived retargeting:
// delta = prevDiff/2048; coeff = max(1 - timeSpanSeconds/10, -99);
// diff = prevDiff + delta*coeff.
func computeDiff(timestamp uint64, prevTimestamp uint64, prevDiff uint64) uint64 {
	delta := int64(prevDiff) / 2048
	timeSpan := int64(timestamp) - int64(prevTimestamp)
	coeff := int64(1) - timeSpan/10
	if coeff < -99 {
		coeff = -99
	}
	result := int64(prevDiff) + delta*coeff
	if result < 1 {
		result = 1
	}
	return uint64(result)
}

// nonceIsValid checks the PoW threshold: the header's own digest,
// interpreted as a 256-bit integer, must not exceed MaxU256/diff.
func nonceIsValid(headerHash common.H256, diff uint64) bool {
	if diff == 0 {
		return true
	}
	threshold := common.MaxU256.Div(common.NewU256(diff))
	return common.U256FromH256(headerHash).Cmp(threshold) <= 0
}

// VerifyConsensus implements chain.ConsensusEngine: the header's claimed
// difficulty must match what retargeting against prev prescribes, and its
// hash must satisfy the PoW threshold for that difficulty.
func VerifyConsensus(header, prev *chain.BlockHeader) error {
	data, err := DecodeConsensusData(header.ConsensusData)
	if err != nil {
		return common.WrapKind(common.KindConsensusInvalid, err)
	}
	prevData, err := DecodeConsensusData(prev.ConsensusData)
	if err != nil {
		return common.WrapKind(common.KindConsensusInvalid, err)
	}

	wantDiff := computeDiff(header.Timestamp, prev.Timestamp, prevData.Diff)
	if data.Diff != wantDiff {
		return common.Newf(common.KindConsensusInvalid, "pow: invalid difficulty: want %d, got %d", wantDiff, data.Diff)
	}
	if !nonceIsValid(header.Hash(), data.Diff) {
		return common.Newf(common.KindConsensusInvalid, "pow: invalid nonce")
	}
	return nil
}

// Engine adapts VerifyConsensus/computeDiff to the chain.ConsensusEngine
// interface, so a client wires exactly one value regardless of which
// consensus package it imports.
type Engine struct{ Cfg Config }

func NewEngine(cfg Config) *Engine { return &Engine{Cfg: cfg} }

func (e *Engine) VerifyConsensus(header, prev *chain.BlockHeader) error {
	return VerifyConsensus(header, prev)
}

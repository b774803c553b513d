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

// Package chain implements the block commit pipeline described in
// spec.md §4.3: header/proposal types, the persisted column families, and
// height-ordered commit with out-of-order gap buffering. A commit writes
// the header, canonical hash and head pointer as separate puts, not as one
// atomic batch.
package chain

import (
	"github.com/slimchain-go/slimchain/common"
	"github.com/slimchain-go/slimchain/wireformat"
)

// BlockHeader is the consensus-agnostic part of a block: everything a
// storage shard or a client needs regardless of whether the chain runs PoW
// or Raft. Consensus-specific fields (PoW difficulty/nonce, Raft log index)
// live in ConsensusData, opaque here and interpreted by the consensus
// adapter (consensus/pow, consensus/raft).
type BlockHeader struct {
	Height        uint64
	PrevHash      common.H256
	StateRoot     common.H256
	TxListHash    common.H256
	Timestamp     uint64
	ConsensusData []byte
}

// Hash returns the header's content digest, the block hash referenced by
// PrevHash in its successor and by the canonical-height index.
func (h *BlockHeader) Hash() common.H256 {
	return common.Keccak256(h.Encode())
}

// Encode serializes the header in field-declaration order (wireformat's
// RLP-equivalent schema).
func (h *BlockHeader) Encode() []byte {
	enc := wireformat.NewEncoder()
	enc.WriteUvarint(h.Height)
	enc.WriteBytes(h.PrevHash.Bytes())
	enc.WriteBytes(h.StateRoot.Bytes())
	enc.WriteBytes(h.TxListHash.Bytes())
	enc.WriteUvarint(h.Timestamp)
	enc.WriteBytes(h.ConsensusData)
	return enc.Bytes()
}

// DecodeBlockHeader parses the Encode format.
func DecodeBlockHeader(b []byte) (*BlockHeader, error) {
	dec := wireformat.NewDecoder(b)
	height, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	prevHash, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	stateRoot, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	txListHash, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	timestamp, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	consensusData, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	return &BlockHeader{
		Height:        height,
		PrevHash:      common.BytesToH256(prevHash),
		StateRoot:     common.BytesToH256(stateRoot),
		TxListHash:    common.BytesToH256(txListHash),
		Timestamp:     timestamp,
		ConsensusData: consensusData,
	}, nil
}

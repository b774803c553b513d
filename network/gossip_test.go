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

package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimchain-go/slimchain/common"
)

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	env := NewEnvelope(TopicNewBlock, []byte("a block proposal payload, repeated, repeated, repeated"))

	decoded, err := DecodeEnvelope(env.Encode())
	require.NoError(t, err)

	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, env.Topic, decoded.Topic)
	assert.Equal(t, env.Payload, decoded.Payload)
}

func TestGossipRouterDeliverDedupesByDigest(t *testing.T) {
	router, err := NewGossipRouter()
	require.NoError(t, err)

	var calls int
	router.Subscribe(TopicNewTx, func(from PeerID, env *Envelope) { calls++ })

	env := NewEnvelope(TopicNewTx, []byte("tx-payload"))
	assert.True(t, router.Deliver("peer-a", env))
	assert.False(t, router.Deliver("peer-b", env))
	assert.Equal(t, 1, calls)
}

func TestGossipRouterPeersToRelayExcludesPeersThatSawIt(t *testing.T) {
	router, err := NewGossipRouter()
	require.NoError(t, err)

	env := NewEnvelope(TopicNewTx, []byte("tx-payload"))
	router.Deliver("peer-a", env)

	relay := router.PeersToRelay(env, []PeerID{"peer-a", "peer-b"})
	assert.Equal(t, []PeerID{"peer-b"}, relay)
}

func TestKnownTxSetTracksMembership(t *testing.T) {
	s := NewKnownTxSet()
	h := common.Keccak256([]byte("tx-hash"))

	assert.False(t, s.Has(h))
	s.Add(h)
	assert.True(t, s.Has(h))
	assert.Equal(t, 1, s.Len())
}

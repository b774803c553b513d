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
	lru "github.com/hashicorp/golang-lru"
	set "gopkg.in/fatih/set.v0"

	"github.com/slimchain-go/slimchain/common"
)

const (
	inmemoryKnownMessages = 4096
	inmemoryPeerMessages  = 1024
)

// PeerID identifies a gossip peer, opaque to this package.
type PeerID string

// GossipRouter dedupes and fans out Envelopes across topics, the same
// "mark seen, skip relay if already known" structure the teacher's
// istanbul backend uses for its consensus messages (consensus/istanbul/
// backend/handler.go): one global ARC cache of digests this node has
// already processed, plus one per-peer ARC cache of what that peer is
// already known to have, so gossip never echoes a message back to the
// peer it came from.
type GossipRouter struct {
	knownMessages *lru.ARCCache // common.H256 -> struct{}
	peerMessages  *lru.ARCCache // PeerID -> *lru.ARCCache of common.H256

	handlers map[Topic]func(from PeerID, env *Envelope)
}

func NewGossipRouter() (*GossipRouter, error) {
	known, err := lru.NewARC(inmemoryKnownMessages)
	if err != nil {
		return nil, err
	}
	peers, err := lru.NewARC(inmemoryPeerMessages)
	if err != nil {
		return nil, err
	}
	return &GossipRouter{
		knownMessages: known,
		peerMessages:  peers,
		handlers:      make(map[Topic]func(from PeerID, env *Envelope)),
	}, nil
}

// Subscribe registers handler to run for every first-seen Envelope on
// topic. Only one handler per topic; a node wanting fan-out composes its
// own dispatcher.
func (g *GossipRouter) Subscribe(topic Topic, handler func(from PeerID, env *Envelope)) {
	g.handlers[topic] = handler
}

// peerSeen returns the known-message set for peer, creating it on first
// contact.
func (g *GossipRouter) peerSeen(peer PeerID) *lru.ARCCache {
	if cached, ok := g.peerMessages.Get(peer); ok {
		return cached.(*lru.ARCCache)
	}
	seen, _ := lru.NewARC(inmemoryKnownMessages)
	g.peerMessages.Add(peer, seen)
	return seen
}

// Deliver is called when env arrives from peer. It returns false (and
// takes no further action) if this node has already processed an
// identical envelope, so a node's own re-broadcast never triggers its own
// handler twice.
func (g *GossipRouter) Deliver(from PeerID, env *Envelope) bool {
	key := env.DedupKey()
	g.peerSeen(from).Add(key, struct{}{})

	if _, ok := g.knownMessages.Get(key); ok {
		return false
	}
	g.knownMessages.Add(key, struct{}{})

	if handler, ok := g.handlers[env.Topic]; ok {
		handler(from, env)
	}
	return true
}

// PeersToRelay filters candidates down to those that have not already seen
// env's digest, the relay-suppression half of gossip flooding.
func (g *GossipRouter) PeersToRelay(env *Envelope, candidates []PeerID) []PeerID {
	key := env.DedupKey()
	out := make([]PeerID, 0, len(candidates))
	for _, p := range candidates {
		seen := g.peerSeen(p)
		if _, ok := seen.Get(key); ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// KnownTxSet and KnownBlockSet track, per peer, which tx/block hashes a
// node believes its peer already holds — gopkg.in/fatih/set.v0 is the
// plain (non-LRU, unbounded-by-design but capped by the caller) set the
// teacher's transaction relay logic uses for this same "don't resend what
// they already have" bookkeeping.
type KnownTxSet struct{ s *set.Set }

func NewKnownTxSet() *KnownTxSet { return &KnownTxSet{s: set.New()} }

func (k *KnownTxSet) Add(h common.H256)      { k.s.Add(h) }
func (k *KnownTxSet) Has(h common.H256) bool { return k.s.Has(h) }
func (k *KnownTxSet) Len() int               { return k.s.Size() }

type KnownBlockSet struct{ s *set.Set }

func NewKnownBlockSet() *KnownBlockSet { return &KnownBlockSet{s: set.New()} }

func (k *KnownBlockSet) Add(h common.H256)      { k.s.Add(h) }
func (k *KnownBlockSet) Has(h common.H256) bool { return k.s.Has(h) }
func (k *KnownBlockSet) Len() int               { return k.s.Size() }

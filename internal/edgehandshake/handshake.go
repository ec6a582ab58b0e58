// Package edgehandshake implements the wire protocol two overlay nodes use
// to jointly sign an edge into existence, and for either endpoint to sign
// one out, over a libp2p stream (spec §4.1).
package edgehandshake

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshroute/overlay/internal/edge"
	"github.com/meshroute/overlay/internal/pid"
	"github.com/meshroute/overlay/internal/signer"
)

// ProtocolID identifies the edge-handshake stream protocol.
const ProtocolID = "/overlay/edge-handshake/1.0.0"

// streamTimeout bounds how long either side waits for the other's message
// before giving up on a handshake attempt.
const streamTimeout = 10 * time.Second

// proposeMsg is the first message: the dialer proposes an edge nonce and
// sends its half of the signature.
type proposeMsg struct {
	Nonce     uint64
	Signature signer.Signature
}

// completeMsg is the response: the listener's half of the signature,
// completing the Added edge.
type completeMsg struct {
	Signature signer.Signature
}

// removeMsg carries a unilateral edge removal, which needs no response.
type removeMsg struct {
	Nonce     uint64
	Signature signer.Signature
}

// Handler wires the edge-handshake protocol into a libp2p host. Its stream
// handler feeds every newly-completed or newly-removed edge to OnEdge.
type Handler struct {
	host   host.Host
	self   pid.ID
	priv   signer.PrivKey
	OnEdge func(edge.Edge)
}

// New registers the edge-handshake stream handler on h. priv is the local
// node's signing key; self must be the peer ID it corresponds to.
func New(h host.Host, self pid.ID, priv signer.PrivKey, onEdge func(edge.Edge)) *Handler {
	hs := &Handler{host: h, self: self, priv: priv, OnEdge: onEdge}
	h.SetStreamHandler(ProtocolID, hs.handleStream)
	return hs
}

// handleStream is invoked for every inbound edge-handshake stream. It
// reads one framed message and dispatches based on which fields it
// populates: a removeMsg is wire-distinguished from a proposeMsg by stream
// sub-protocol negotiation isn't available per-message with gob, so the
// handshake instead opens a fresh stream per message kind (see Propose and
// Remove below), each tagged by the first byte.
func (hs *Handler) handleStream(s network.Stream) {
	defer s.Close()
	s.SetDeadline(time.Now().Add(streamTimeout))

	r := bufio.NewReader(s)
	kind, err := r.ReadByte()
	if err != nil {
		s.Reset()
		return
	}

	remote := s.Conn().RemotePeer()

	switch kind {
	case kindPropose:
		hs.respondToPropose(s, r, remote)
	case kindRemove:
		hs.acceptRemove(r, remote)
	default:
		s.Reset()
	}
}

const (
	kindPropose byte = 1
	kindRemove  byte = 2
)

// respondToPropose completes a joint edge-addition handshake initiated by
// remote: it verifies remote's partial signature, builds its own half, and
// writes it back.
func (hs *Handler) respondToPropose(s network.Stream, r *bufio.Reader, remote peer.ID) {
	dec := gob.NewDecoder(r)
	var msg proposeMsg
	if err := dec.Decode(&msg); err != nil {
		s.Reset()
		return
	}

	remotePub, err := signer.PubKeyFromID(remote)
	if err != nil {
		s.Reset()
		return
	}

	info := edge.EdgeInfo{Nonce: msg.Nonce, Signature: msg.Signature}
	ok, err := edge.PartialVerify(hs.self, remote, info, remotePub)
	if err != nil || !ok {
		s.Reset()
		return
	}

	e, err := edge.CompleteAdd(hs.self, remote, msg.Nonce, msg.Signature, hs.priv)
	if err != nil {
		s.Reset()
		return
	}

	var reply completeMsg
	if pid.Less(hs.self, remote) {
		reply.Signature = e.Sig0
	} else {
		reply.Signature = e.Sig1
	}

	enc := gob.NewEncoder(s)
	if err := enc.Encode(reply); err != nil {
		return
	}

	if hs.OnEdge != nil {
		hs.OnEdge(e)
	}
}

// acceptRemove decodes a unilateral removal notice and hands an edge
// skeleton (peers, nonce, and the removal signature) to OnEdge. It cannot
// verify the removal on its own: full verification needs the original
// Added edge's Sig0/Sig1 (spec §4.1's removal branch re-checks the prior
// addition), which only the edge store holds. The caller is expected to
// merge this skeleton with its stored record and run edge.Verify before
// ever applying it (see overlaynet's edge-event wiring).
func (hs *Handler) acceptRemove(r *bufio.Reader, remote peer.ID) {
	dec := gob.NewDecoder(r)
	var msg removeMsg
	if err := dec.Decode(&msg); err != nil {
		return
	}

	peer0, peer1 := pid.Canonical(hs.self, remote)
	party := byte(0)
	if remote == peer1 {
		party = 1
	}
	e := edge.Edge{
		Peer0:   peer0,
		Peer1:   peer1,
		Nonce:   msg.Nonce,
		Removal: &edge.Removal{Party: party, Sig: msg.Signature},
	}

	if hs.OnEdge != nil {
		hs.OnEdge(e)
	}
}

// Propose dials target and runs the dialer's half of an edge-addition
// handshake, returning the completed, fully-verified edge.
func (hs *Handler) Propose(ctx context.Context, target pid.ID, nonce uint64) (edge.Edge, error) {
	ctx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()

	s, err := hs.host.NewStream(ctx, target, ProtocolID)
	if err != nil {
		return edge.Edge{}, fmt.Errorf("edgehandshake: open stream: %w", err)
	}
	defer s.Close()
	s.SetDeadline(time.Now().Add(streamTimeout))

	info, err := edge.Propose(hs.self, target, nonce, hs.priv)
	if err != nil {
		return edge.Edge{}, fmt.Errorf("edgehandshake: propose: %w", err)
	}

	if _, err := s.Write([]byte{kindPropose}); err != nil {
		return edge.Edge{}, fmt.Errorf("edgehandshake: write frame tag: %w", err)
	}
	if err := gob.NewEncoder(s).Encode(proposeMsg{Nonce: info.Nonce, Signature: info.Signature}); err != nil {
		return edge.Edge{}, fmt.Errorf("edgehandshake: encode propose: %w", err)
	}

	var reply completeMsg
	if err := gob.NewDecoder(s).Decode(&reply); err != nil {
		return edge.Edge{}, fmt.Errorf("edgehandshake: decode complete: %w", err)
	}

	targetPub, err := signer.PubKeyFromID(target)
	if err != nil {
		return edge.Edge{}, fmt.Errorf("edgehandshake: resolve target key: %w", err)
	}

	self, other := hs.self, target
	var e edge.Edge
	if pid.Less(self, other) {
		e = buildEdge(self, other, info.Nonce, info.Signature, reply.Signature)
	} else {
		e = buildEdge(other, self, info.Nonce, reply.Signature, info.Signature)
	}

	selfPub, err := signer.PubKeyFromID(self)
	if err != nil {
		return edge.Edge{}, fmt.Errorf("edgehandshake: resolve self key: %w", err)
	}

	var pub0, pub1 signer.PubKey
	if e.Peer0 == self {
		pub0, pub1 = selfPub, targetPub
	} else {
		pub0, pub1 = targetPub, selfPub
	}
	ok, err := edge.VerifyWithKeys(e, pub0, pub1)
	if err != nil || !ok {
		return edge.Edge{}, fmt.Errorf("edgehandshake: completed edge failed verification")
	}
	return e, nil
}

func buildEdge(peer0, peer1 pid.ID, nonce uint64, sig0, sig1 signer.Signature) edge.Edge {
	return edge.Edge{Peer0: peer0, Peer1: peer1, Nonce: nonce, Sig0: sig0, Sig1: sig1}
}

// Remove dials target's peer and delivers a unilateral edge removal. The
// listener applies it without replying (spec §4.1: removal needs only one
// signature).
func (hs *Handler) Remove(ctx context.Context, target pid.ID, e edge.Edge) error {
	ctx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()

	s, err := hs.host.NewStream(ctx, target, ProtocolID)
	if err != nil {
		return fmt.Errorf("edgehandshake: open stream: %w", err)
	}
	defer s.Close()
	s.SetDeadline(time.Now().Add(streamTimeout))

	sig := e.Removal.Sig

	if _, err := s.Write([]byte{kindRemove}); err != nil {
		return fmt.Errorf("edgehandshake: write frame tag: %w", err)
	}
	return gob.NewEncoder(s).Encode(removeMsg{Nonce: e.Nonce, Signature: sig})
}

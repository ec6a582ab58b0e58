// Package edge implements the overlay's edge authentication protocol: two
// peers jointly sign an undirected edge into existence, and either party can
// unilaterally sign it back out, with a monotone nonce defending against
// replay and stale gossip (spec §3, §4.1, §4.5).
package edge

import (
	"encoding/binary"
	"fmt"

	"github.com/meshroute/overlay/internal/pid"
	"github.com/meshroute/overlay/internal/signer"
)

// Type is the edge's lifecycle state, determined entirely by nonce parity.
type Type int

const (
	// Added means the edge currently represents a live connection.
	Added Type = iota
	// Removed means the edge has been signed out by one of its endpoints.
	Removed
)

func (t Type) String() string {
	if t == Added {
		return "Added"
	}
	return "Removed"
}

// Removal carries the party and signature that took an Added edge out of
// the graph.
type Removal struct {
	// Party is 0 if Peer0 signed the removal, 1 if Peer1 did.
	Party byte
	Sig   signer.Signature
}

// Edge is an authenticated undirected connection between two distinct
// peers, versioned by a monotone nonce. Peer0 < Peer1 always holds (see
// pid.Canonical); that invariant is established at construction and
// re-checked by Verify.
type Edge struct {
	Peer0, Peer1 pid.ID
	Nonce        uint64
	Sig0, Sig1   signer.Signature
	Removal      *Removal // nil unless Kind() == Removed
}

// Kind returns Added for an odd nonce, Removed for an even one (nonce 0 is
// reserved and never produced by this package).
func (e Edge) Kind() Type {
	if e.Nonce%2 == 1 {
		return Added
	}
	return Removed
}

// Pair returns the edge's canonical pair key.
func (e Edge) Pair() pid.Pair {
	return pid.Pair{Peer0: e.Peer0, Peer1: e.Peer1}
}

// ContainsPeer reports whether p is one of the edge's two endpoints.
func (e Edge) ContainsPeer(p pid.ID) bool {
	return e.Peer0 == p || e.Peer1 == p
}

// OtherEndpoint returns the endpoint of e that is not me, and ok=false if me
// is not one of the edge's endpoints.
func (e Edge) OtherEndpoint(me pid.ID) (pid.ID, bool) {
	switch me {
	case e.Peer0:
		return e.Peer1, true
	case e.Peer1:
		return e.Peer0, true
	default:
		return "", false
	}
}

// NextNonce returns the next legal Added nonce following this edge's
// current nonce: always odd, skipping over the just-used Removed nonce if
// the edge is currently live.
func (e Edge) NextNonce() uint64 {
	if e.Nonce%2 == 1 {
		return e.Nonce + 2
	}
	return e.Nonce + 1
}

// buildHash computes H(peer0 || peer1 || nonce_le) with peer0 < peer1. This
// is the canonical hash signed by both parties at the odd nonce that added
// the edge, and by the removing party at the current even nonce.
func buildHash(peer0, peer1 pid.ID, nonce uint64) signer.Digest {
	buf := make([]byte, 0, len(peer0)+len(peer1)+8)
	buf = append(buf, []byte(peer0)...)
	buf = append(buf, []byte(peer1)...)
	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], nonce)
	buf = append(buf, nonceBytes[:]...)
	return signer.Hash(buf)
}

// additionHash is the hash both endpoints sign to add the edge. For an
// Added edge this is hashed at the current nonce; for a Removed edge it is
// hashed at nonce-1, the odd nonce that originally added it.
func (e Edge) additionHash() signer.Digest {
	n := e.Nonce
	if e.Kind() == Removed {
		n--
	}
	return buildHash(e.Peer0, e.Peer1, n)
}

// removalHash is the hash the removing party signs, at the edge's current
// (even) nonce.
func (e Edge) removalHash() signer.Digest {
	return buildHash(e.Peer0, e.Peer1, e.Nonce)
}

// EdgeInfo is the half-signed proposal exchanged during a handshake: one
// peer's signature over the addition hash at a proposed nonce.
type EdgeInfo struct {
	Nonce     uint64
	Signature signer.Signature
}

// Propose signs an addition proposal for a new or renewed edge between self
// and other at proposedNonce, using self's private key. The resulting
// EdgeInfo is sent to other, who partial-verifies it before countersigning.
func Propose(self, other pid.ID, proposedNonce uint64, selfKey signer.PrivKey) (EdgeInfo, error) {
	p0, p1 := pid.Canonical(self, other)
	h := buildHash(p0, p1, proposedNonce)
	sig, err := selfKey.Sign(h.Bytes())
	if err != nil {
		return EdgeInfo{}, fmt.Errorf("edge: propose: sign: %w", err)
	}
	return EdgeInfo{Nonce: proposedNonce, Signature: sig}, nil
}

// PartialVerify checks that info.Signature is a valid signature by other
// over the addition hash at info.Nonce, without requiring self's own
// signature yet. Used during handshake to accept a peer's proposal before
// committing our own signature (spec §4.1 "Partial verify").
func PartialVerify(self, other pid.ID, info EdgeInfo, otherKey signer.PubKey) (bool, error) {
	p0, p1 := pid.Canonical(self, other)
	h := buildHash(p0, p1, info.Nonce)
	return otherKey.Verify(h.Bytes(), info.Signature)
}

// CompleteAdd finishes a handshake: self signs the same addition hash other
// already signed (carried in otherSig), producing the fully-signed Added
// edge.
func CompleteAdd(self, other pid.ID, nonce uint64, otherSig signer.Signature, selfKey signer.PrivKey) (Edge, error) {
	p0, p1 := pid.Canonical(self, other)
	h := buildHash(p0, p1, nonce)
	selfSig, err := selfKey.Sign(h.Bytes())
	if err != nil {
		return Edge{}, fmt.Errorf("edge: complete add: sign: %w", err)
	}

	e := Edge{Peer0: p0, Peer1: p1, Nonce: nonce}
	if self == p0 {
		e.Sig0, e.Sig1 = selfSig, otherSig
	} else {
		e.Sig0, e.Sig1 = otherSig, selfSig
	}
	return e, nil
}

// IssueRemove signs an edge out of the graph. e must be an Added edge that
// me is one of the two endpoints of; the resulting edge has nonce+1 (even),
// a Removal signed by me, and the original Sig0/Sig1 preserved unchanged
// (they still attest the prior addition, per spec §4.1).
func IssueRemove(e Edge, me pid.ID, meKey signer.PrivKey) (Edge, error) {
	if e.Kind() != Added {
		return Edge{}, fmt.Errorf("edge: issue remove: edge is not Added (nonce=%d)", e.Nonce)
	}
	party, ok := partyOf(e, me)
	if !ok {
		return Edge{}, fmt.Errorf("edge: issue remove: %s is not an endpoint of this edge", pid.Short(me))
	}

	out := e
	out.Nonce = e.Nonce + 1
	h := out.removalHash()
	sig, err := meKey.Sign(h.Bytes())
	if err != nil {
		return Edge{}, fmt.Errorf("edge: issue remove: sign: %w", err)
	}
	out.Removal = &Removal{Party: party, Sig: sig}
	return out, nil
}

func partyOf(e Edge, me pid.ID) (byte, bool) {
	switch me {
	case e.Peer0:
		return 0, true
	case e.Peer1:
		return 1, true
	default:
		return 0, false
	}
}

// Verify checks all of the conditions in spec §4.1 for e, resolving each
// endpoint's public key from its peer ID.
func Verify(e Edge) (bool, error) {
	pub0, err := signer.PubKeyFromID(e.Peer0)
	if err != nil {
		return false, fmt.Errorf("edge: verify: peer0 pubkey: %w", err)
	}
	pub1, err := signer.PubKeyFromID(e.Peer1)
	if err != nil {
		return false, fmt.Errorf("edge: verify: peer1 pubkey: %w", err)
	}
	return VerifyWithKeys(e, pub0, pub1)
}

// VerifyWithKeys is Verify with explicit public keys, for callers (and
// tests) that already hold them and want to avoid the ID-extraction path.
func VerifyWithKeys(e Edge, pub0, pub1 signer.PubKey) (bool, error) {
	if !pid.Less(e.Peer0, e.Peer1) {
		return false, nil
	}

	switch e.Kind() {
	case Added:
		if e.Removal != nil {
			return false, nil
		}
		h := e.additionHash()
		ok0, err := pub0.Verify(h.Bytes(), e.Sig0)
		if err != nil {
			return false, fmt.Errorf("edge: verify: sig0: %w", err)
		}
		ok1, err := pub1.Verify(h.Bytes(), e.Sig1)
		if err != nil {
			return false, fmt.Errorf("edge: verify: sig1: %w", err)
		}
		return ok0 && ok1, nil

	default: // Removed
		if e.Nonce == 0 {
			return false, nil
		}
		addHash := e.additionHash()
		ok0, err := pub0.Verify(addHash.Bytes(), e.Sig0)
		if err != nil {
			return false, fmt.Errorf("edge: verify: sig0: %w", err)
		}
		ok1, err := pub1.Verify(addHash.Bytes(), e.Sig1)
		if err != nil {
			return false, fmt.Errorf("edge: verify: sig1: %w", err)
		}
		if !ok0 || !ok1 {
			return false, nil
		}
		if e.Removal == nil {
			return false, nil
		}
		removerPub := pub0
		if e.Removal.Party == 1 {
			removerPub = pub1
		}
		delHash := e.removalHash()
		return removerPub.Verify(delHash.Bytes(), e.Removal.Sig)
	}
}

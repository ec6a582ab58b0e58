// Package signer supplies the hash and signature primitives the edge
// authentication protocol is built on (see spec §6, "External Interfaces").
// The routing core never imports a concrete crypto package directly; it
// depends only on the PubKey/PrivKey contract below, so the primitive can be
// swapped (e.g. for a test double) without touching internal/edge.
package signer

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/zeebo/blake3"
)

// DigestSize is the fixed output width of Hash, in bytes.
const DigestSize = 32

// Digest is a fixed-width, collision-resistant hash of canonical edge bytes.
type Digest [DigestSize]byte

// Hash computes H(data) using BLAKE3. The edge protocol hashes small,
// fixed-layout buffers (two peer IDs plus an 8-byte nonce) at a high rate
// during gossip storms, which is exactly BLAKE3's sweet spot.
func Hash(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// Bytes returns the digest as a byte slice, for signing/verification calls
// that want []byte rather than a fixed array.
func (d Digest) Bytes() []byte { return d[:] }

// PrivKey signs data for edge proposals, completions, and removals.
type PrivKey interface {
	Sign(data []byte) (Signature, error)
	Public() PubKey
}

// PubKey verifies a Signature produced by the matching PrivKey.
type PubKey interface {
	Verify(data []byte, sig Signature) (bool, error)
}

// Signature is an opaque signature over some signed data. Equality is
// defined by the concrete implementation (libp2p signatures are byte slices;
// Signature wraps that so the core never reasons about encoding).
type Signature []byte

// libp2pPriv adapts a go-libp2p crypto.PrivKey (Ed25519 by default) to the
// PrivKey contract.
type libp2pPriv struct{ key crypto.PrivKey }

// libp2pPub adapts a go-libp2p crypto.PubKey to the PubKey contract.
type libp2pPub struct{ key crypto.PubKey }

// WrapPrivKey adapts an existing libp2p private key (as loaded by
// pkg/overlaynet's identity helpers) to the signer.PrivKey contract.
func WrapPrivKey(key crypto.PrivKey) PrivKey { return libp2pPriv{key: key} }

// WrapPubKey adapts an existing libp2p public key to the signer.PubKey
// contract.
func WrapPubKey(key crypto.PubKey) PubKey { return libp2pPub{key: key} }

func (p libp2pPriv) Sign(data []byte) (Signature, error) {
	sig, err := p.key.Sign(data)
	if err != nil {
		return nil, err
	}
	return Signature(sig), nil
}

func (p libp2pPriv) Public() PubKey {
	return libp2pPub{key: p.key.GetPublic()}
}

func (p libp2pPub) Verify(data []byte, sig Signature) (bool, error) {
	return p.key.Verify(data, []byte(sig))
}

// GenerateKeyPair creates a new Ed25519 identity key pair, matching the
// teacher's LoadOrCreateIdentity key type.
func GenerateKeyPair() (PrivKey, PubKey, error) {
	priv, pub, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, nil, err
	}
	return WrapPrivKey(priv), WrapPubKey(pub), nil
}

// GenerateIdentity creates a new Ed25519 identity and derives its peer ID in
// one step, for callers (identity bootstrap, tests) that need all three.
func GenerateIdentity() (PrivKey, peer.ID, error) {
	priv, pub, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, "", err
	}
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return nil, "", fmt.Errorf("signer: derive peer id: %w", err)
	}
	return WrapPrivKey(priv), id, nil
}

// PubKeyFromID recovers the public key embedded in a peer ID. Ed25519 peer
// IDs are small enough that libp2p inlines the public key into the ID
// itself, so no out-of-band key lookup or directory is needed to verify an
// edge signature purportedly made by that peer.
func PubKeyFromID(id peer.ID) (PubKey, error) {
	pub, err := id.ExtractPublicKey()
	if err != nil {
		return nil, fmt.Errorf("signer: extract public key from peer id: %w", err)
	}
	return WrapPubKey(pub), nil
}

package edge

import (
	"reflect"
	"testing"

	"github.com/meshroute/overlay/internal/pid"
	"github.com/meshroute/overlay/internal/signer"
)

// testPeer bundles a generated identity with its wrapped keys for tests.
type testPeer struct {
	ID   pid.ID
	Priv signer.PrivKey
	Pub  signer.PubKey
}

// genTestPeerPair generates a fresh Ed25519 identity for tests.
func genTestPeerPair(t *testing.T) testPeer {
	t.Helper()
	priv, id, err := signer.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return testPeer{ID: id, Priv: priv, Pub: priv.Public()}
}

func TestEdgeHandshakeLifecycle(t *testing.T) {
	a := genTestPeerPair(t)
	b := genTestPeerPair(t)
	var self, other testPeer
	if pid.Less(a.ID, b.ID) {
		self, other = a, b
	} else {
		self, other = b, a
	}

	info, err := Propose(other.ID, self.ID, 1, other.Priv)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	ok, err := PartialVerify(self.ID, other.ID, info, other.Pub)
	if err != nil || !ok {
		t.Fatalf("partial verify = %v, %v, want true, nil", ok, err)
	}

	e, err := CompleteAdd(self.ID, other.ID, info.Nonce, info.Signature, self.Priv)
	if err != nil {
		t.Fatalf("complete add: %v", err)
	}

	if e.Peer0 != a.ID && e.Peer0 != b.ID {
		t.Fatalf("unexpected peer0 %v", e.Peer0)
	}
	if !pid.Less(e.Peer0, e.Peer1) {
		t.Fatalf("peer0 must be < peer1")
	}
	if e.Kind() != Added {
		t.Fatalf("kind = %v, want Added", e.Kind())
	}

	valid, err := Verify(e)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !valid {
		t.Fatal("expected freshly completed edge to verify")
	}
}

func TestEdgeRemoveThenVerify(t *testing.T) {
	a, b, added := buildAddedEdge(t)

	removed, err := IssueRemove(added, a.ID, a.Priv)
	if err != nil {
		t.Fatalf("issue remove: %v", err)
	}
	if removed.Kind() != Removed {
		t.Fatalf("kind = %v, want Removed", removed.Kind())
	}
	if removed.Nonce != added.Nonce+1 {
		t.Fatalf("nonce = %d, want %d", removed.Nonce, added.Nonce+1)
	}
	wantParty := byte(0)
	if a.ID == removed.Peer1 {
		wantParty = 1
	}
	if removed.Removal.Party != wantParty {
		t.Fatalf("removal party = %d, want %d", removed.Removal.Party, wantParty)
	}

	ok, err := Verify(removed)
	if err != nil {
		t.Fatalf("verify removed: %v", err)
	}
	if !ok {
		t.Fatal("expected removed edge to verify")
	}

	_ = b // silence unused in case of future edits
}

func TestEdgeRemoveByNonEndpointFails(t *testing.T) {
	_, _, added := buildAddedEdge(t)
	stranger := genTestPeerPair(t)

	_, err := IssueRemove(added, stranger.ID, stranger.Priv)
	if err == nil {
		t.Fatal("expected error issuing remove from a non-endpoint")
	}
}

func TestEdgeVerifyRejectsUnordered(t *testing.T) {
	_, _, added := buildAddedEdge(t)
	swapped := added
	swapped.Peer0, swapped.Peer1 = added.Peer1, added.Peer0
	swapped.Sig0, swapped.Sig1 = added.Sig1, added.Sig0

	ok, err := Verify(swapped)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected swapped-order edge to fail verification")
	}
}

func TestEdgeVerifyRejectsTamperedNonce(t *testing.T) {
	_, _, added := buildAddedEdge(t)
	tampered := added
	tampered.Nonce = added.Nonce + 2

	ok, err := Verify(tampered)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected tampered-nonce edge to fail verification")
	}
}

func TestNextNonce(t *testing.T) {
	cases := []struct {
		nonce uint64
		want  uint64
	}{
		{1, 3},
		{3, 5},
		{2, 3},
		{4, 5},
	}
	for _, c := range cases {
		e := Edge{Nonce: c.nonce}
		if got := e.NextNonce(); got != c.want {
			t.Errorf("NextNonce(%d) = %d, want %d", c.nonce, got, c.want)
		}
	}
}

func TestContainsPeerAndOtherEndpoint(t *testing.T) {
	_, _, added := buildAddedEdge(t)

	if !added.ContainsPeer(added.Peer0) || !added.ContainsPeer(added.Peer1) {
		t.Fatal("ContainsPeer should be true for both endpoints")
	}
	stranger := genTestPeerPair(t)
	if added.ContainsPeer(stranger.ID) {
		t.Fatal("ContainsPeer should be false for a stranger")
	}

	other, ok := added.OtherEndpoint(added.Peer0)
	if !ok || other != added.Peer1 {
		t.Fatalf("OtherEndpoint(peer0) = %v, %v, want peer1, true", other, ok)
	}
	if _, ok := added.OtherEndpoint(stranger.ID); ok {
		t.Fatal("OtherEndpoint should fail for a non-endpoint")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	_, _, added := buildAddedEdge(t)

	wire, err := Encode(added)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, added) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, added)
	}
}

func TestEncodeDecodeRoundTripRemoved(t *testing.T) {
	a, _, added := buildAddedEdge(t)
	removed, err := IssueRemove(added, a.ID, a.Priv)
	if err != nil {
		t.Fatalf("issue remove: %v", err)
	}

	wire, err := Encode(removed)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Nonce != removed.Nonce || got.Removal == nil || got.Removal.Party != removed.Removal.Party {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, removed)
	}
}

// buildAddedEdge constructs and fully signs an Added edge between two fresh
// test identities, returning the (ordered-by-canonical-peer0) identity whose
// key signed peer0, the other identity, and the edge.
func buildAddedEdge(t *testing.T) (self, other testPeer, e Edge) {
	t.Helper()
	a := genTestPeerPair(t)
	b := genTestPeerPair(t)
	if pid.Less(a.ID, b.ID) {
		self, other = a, b
	} else {
		self, other = b, a
	}

	info, err := Propose(other.ID, self.ID, 1, other.Priv)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	e, err = CompleteAdd(self.ID, other.ID, info.Nonce, info.Signature, self.Priv)
	if err != nil {
		t.Fatalf("complete add: %v", err)
	}
	return self, other, e
}

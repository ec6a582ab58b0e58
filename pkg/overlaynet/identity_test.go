package overlaynet

import (
	"path/filepath"
	"testing"

	"github.com/meshroute/overlay/internal/signer"
)

func TestLoadOrCreateIdentityGeneratesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")

	priv1, err := LoadOrCreateIdentity(path)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity: %v", err)
	}

	priv2, err := LoadOrCreateIdentity(path)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity (reload): %v", err)
	}

	b1, err := priv1.Raw()
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	b2, err := priv2.Raw()
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if string(b1) != string(b2) {
		t.Fatal("reloaded key differs from generated key")
	}
}

func TestPeerIDFromKeyFileStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")

	id1, _, _, err := PeerIDFromKeyFile(path)
	if err != nil {
		t.Fatalf("PeerIDFromKeyFile: %v", err)
	}

	id2, _, _, err := PeerIDFromKeyFile(path)
	if err != nil {
		t.Fatalf("PeerIDFromKeyFile (reload): %v", err)
	}

	if id1 != id2 {
		t.Fatalf("peer ID not stable across reload: %s != %s", id1, id2)
	}
}

func TestPeerIDFromKeyFileWrapsSigner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")

	id, _, signerPriv, err := PeerIDFromKeyFile(path)
	if err != nil {
		t.Fatalf("PeerIDFromKeyFile: %v", err)
	}

	msg := []byte("overlay edge handshake")
	sig, err := signerPriv.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	pub, err := signer.PubKeyFromID(id)
	if err != nil {
		t.Fatalf("PubKeyFromID: %v", err)
	}
	ok, err := pub.Verify(msg, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("signature from wrapped key did not verify against derived peer ID")
	}
}

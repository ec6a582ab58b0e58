package overlaynet

import (
	"fmt"
	"os"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshroute/overlay/internal/pid"
	"github.com/meshroute/overlay/internal/signer"
)

// LoadOrCreateIdentity loads an existing Ed25519 identity from path, or
// generates and persists a new one if the file doesn't exist yet.
func LoadOrCreateIdentity(path string) (crypto.PrivKey, error) {
	if data, err := os.ReadFile(path); err == nil {
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("unmarshal key from %s: %w", path, err)
		}
		return priv, nil
	}

	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}

	data, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return nil, fmt.Errorf("write key to %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rename key into place: %w", err)
	}

	return priv, nil
}

// PeerIDFromKeyFile loads (or creates) a key file and returns the derived
// overlay node identity: its libp2p peer ID, the raw libp2p key (needed to
// construct the host), and the signer.PrivKey wrapping that same key, used
// to sign edge-handshake messages (spec §2, §4.1).
func PeerIDFromKeyFile(path string) (pid.ID, crypto.PrivKey, signer.PrivKey, error) {
	priv, err := LoadOrCreateIdentity(path)
	if err != nil {
		return "", nil, nil, err
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return "", nil, nil, fmt.Errorf("derive peer ID: %w", err)
	}
	return id, priv, signer.WrapPrivKey(priv), nil
}

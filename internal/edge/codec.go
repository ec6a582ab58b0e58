package edge

import (
	"encoding/binary"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Encode serializes e in the canonical wire order from spec §6: peer0,
// peer1, nonce (u64 little-endian), sig0, sig1, then an optional
// (party, sig_remove) tuple. Peer IDs and signatures are each length-
// prefixed with a single byte (they are always short: libp2p peer IDs and
// Ed25519 signatures comfortably fit in a byte's range).
func Encode(e Edge) ([]byte, error) {
	p0 := []byte(e.Peer0)
	p1 := []byte(e.Peer1)
	if len(p0) > 255 || len(p1) > 255 {
		return nil, fmt.Errorf("edge: encode: peer id too long to length-prefix")
	}
	if len(e.Sig0) > 255 || len(e.Sig1) > 255 {
		return nil, fmt.Errorf("edge: encode: signature too long to length-prefix")
	}

	buf := make([]byte, 0, 2+len(p0)+len(p1)+8+2+len(e.Sig0)+len(e.Sig1)+2)
	buf = append(buf, byte(len(p0)))
	buf = append(buf, p0...)
	buf = append(buf, byte(len(p1)))
	buf = append(buf, p1...)

	var nonceBytes [8]byte
	binary.LittleEndian.PutUint64(nonceBytes[:], e.Nonce)
	buf = append(buf, nonceBytes[:]...)

	buf = append(buf, byte(len(e.Sig0)))
	buf = append(buf, e.Sig0...)
	buf = append(buf, byte(len(e.Sig1)))
	buf = append(buf, e.Sig1...)

	if e.Removal == nil {
		buf = append(buf, 0) // option tag: absent
	} else {
		if len(e.Removal.Sig) > 255 {
			return nil, fmt.Errorf("edge: encode: removal signature too long to length-prefix")
		}
		buf = append(buf, 1, e.Removal.Party, byte(len(e.Removal.Sig)))
		buf = append(buf, e.Removal.Sig...)
	}
	return buf, nil
}

// Decode parses the wire format produced by Encode. It does not verify the
// edge; callers must call Verify before trusting it (spec §7: "the store
// never holds an unverified edge").
func Decode(buf []byte) (Edge, error) {
	var e Edge
	r := reader{buf: buf}

	p0, err := r.lenPrefixed()
	if err != nil {
		return Edge{}, fmt.Errorf("edge: decode: peer0: %w", err)
	}
	p1, err := r.lenPrefixed()
	if err != nil {
		return Edge{}, fmt.Errorf("edge: decode: peer1: %w", err)
	}
	e.Peer0 = peer.ID(p0)
	e.Peer1 = peer.ID(p1)

	nonceBytes, err := r.take(8)
	if err != nil {
		return Edge{}, fmt.Errorf("edge: decode: nonce: %w", err)
	}
	e.Nonce = binary.LittleEndian.Uint64(nonceBytes)

	sig0, err := r.lenPrefixed()
	if err != nil {
		return Edge{}, fmt.Errorf("edge: decode: sig0: %w", err)
	}
	e.Sig0 = append([]byte(nil), sig0...)

	sig1, err := r.lenPrefixed()
	if err != nil {
		return Edge{}, fmt.Errorf("edge: decode: sig1: %w", err)
	}
	e.Sig1 = append([]byte(nil), sig1...)

	tag, err := r.take(1)
	if err != nil {
		return Edge{}, fmt.Errorf("edge: decode: removal tag: %w", err)
	}
	if tag[0] == 1 {
		partyByte, err := r.take(1)
		if err != nil {
			return Edge{}, fmt.Errorf("edge: decode: removal party: %w", err)
		}
		sig, err := r.lenPrefixed()
		if err != nil {
			return Edge{}, fmt.Errorf("edge: decode: removal sig: %w", err)
		}
		e.Removal = &Removal{Party: partyByte[0], Sig: append([]byte(nil), sig...)}
	}

	if !r.exhausted() {
		return Edge{}, fmt.Errorf("edge: decode: %d trailing bytes", len(r.buf)-r.pos)
	}
	return e, nil
}

// reader is a minimal cursor over a byte buffer shared by the length-
// prefixed fields in the wire format.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of buffer (want %d, have %d)", n, len(r.buf)-r.pos)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) lenPrefixed() ([]byte, error) {
	lenByte, err := r.take(1)
	if err != nil {
		return nil, err
	}
	return r.take(int(lenByte[0]))
}

func (r *reader) exhausted() bool { return r.pos == len(r.buf) }

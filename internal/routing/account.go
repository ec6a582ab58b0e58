package routing

import "github.com/meshroute/overlay/internal/pid"

// Announcement is an account-announcement: an opaque blob containing the
// account's owning PID and a signed attestation. Validation of the
// attestation is external to the routing core (spec §3 "Account Directory",
// §1 Scope: "account-announcement gossip ... we store announcements
// verbatim"); the core only dedupes by account ID and hands back the PID.
type Announcement struct {
	AccountID string
	PeerID    pid.ID
	// Attestation is the opaque, externally-validated signed payload. Two
	// announcements are equal iff AccountID, PeerID, and Attestation all
	// match byte-for-byte.
	Attestation []byte
}

// Equal reports whether two announcements carry identical content.
func (a Announcement) Equal(b Announcement) bool {
	if a.AccountID != b.AccountID || a.PeerID != b.PeerID {
		return false
	}
	if len(a.Attestation) != len(b.Attestation) {
		return false
	}
	for i := range a.Attestation {
		if a.Attestation[i] != b.Attestation[i] {
			return false
		}
	}
	return true
}

// accountDirectory is at most one announcement per account ID.
type accountDirectory struct {
	byAccount map[string]Announcement
}

func newAccountDirectory() *accountDirectory {
	return &accountDirectory{byAccount: make(map[string]Announcement)}
}

// add inserts a, returning true if it is new or identical to the stored
// entry, false if it conflicts with a different existing announcement for
// the same account (spec §4.4 "Account directory").
func (d *accountDirectory) add(a Announcement) bool {
	existing, ok := d.byAccount[a.AccountID]
	if !ok {
		d.byAccount[a.AccountID] = a
		return true
	}
	return existing.Equal(a)
}

// contains reports whether a matches the currently stored announcement for
// its account, mirroring the original implementation's contains_account.
func (d *accountDirectory) contains(a Announcement) bool {
	existing, ok := d.byAccount[a.AccountID]
	return ok && existing.Equal(a)
}

// owner returns the PID on file for accountID.
func (d *accountDirectory) owner(accountID string) (pid.ID, bool) {
	a, ok := d.byAccount[accountID]
	if !ok {
		return "", false
	}
	return a.PeerID, true
}

// all returns a snapshot of every stored announcement.
func (d *accountDirectory) all() []Announcement {
	out := make([]Announcement, 0, len(d.byAccount))
	for _, a := range d.byAccount {
		out = append(out, a)
	}
	return out
}

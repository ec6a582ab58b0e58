package overlaynet

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
)

// emojiTable contains 256 universally recognizable emoji for SAS encoding.
// 8 bytes of hash = 4 emoji (2 bytes per emoji index, mod 256).
var emojiTable = [256]string{
	// Animals
	"🐶", "🐱", "🐭", "🐹", "🐰", "🦊", "🐻", "🐼",
	"🐨", "🐯", "🦁", "🐮", "🐷", "🐸", "🐵", "🐔",
	"🐧", "🐦", "🐤", "🦆", "🦅", "🦉", "🦇", "🐺",
	"🐗", "🐴", "🦄", "🐝", "🐛", "🦋", "🐌", "🐞",
	// Sea creatures
	"🐙", "🦑", "🦐", "🦀", "🐡", "🐠", "🐟", "🐬",
	"🐳", "🐋", "🦈", "🐊", "🐅", "🐆", "🦓", "🦍",
	// More animals
	"🐘", "🦛", "🦏", "🐪", "🐫", "🦒", "🦘", "🐃",
	"🐂", "🐄", "🐎", "🐖", "🐏", "🐑", "🦙", "🐐",
	// Nature
	"🌵", "🎄", "🌲", "🌳", "🌴", "🌱", "🌿", "🍀",
	"🍁", "🍂", "🍃", "🌺", "🌻", "🌹", "🥀", "🌷",
	"🌼", "🌸", "💐", "🍄", "🌰", "🎃", "🌑", "🌒",
	"🌓", "🌔", "🌕", "🌖", "🌗", "🌘", "🌙", "🌚",
	// Weather
	"⭐", "🌟", "💫", "✨", "☄️", "🌤️", "⛅", "🌥️",
	"🌦️", "🌧️", "⛈️", "🌩️", "🌪️", "🌈", "☀️", "🌊",
	// Food
	"🍎", "🍊", "🍋", "🍌", "🍉", "🍇", "🍓", "🍈",
	"🍒", "🍑", "🥭", "🍍", "🥥", "🥝", "🍅", "🥑",
	"🌶️", "🥕", "🥔", "🧅", "🌽", "🥦", "🥒", "🥬",
	"🍆", "🥜", "🫘", "🍞", "🥐", "🥖", "🧀", "🥚",
	// Objects
	"🔑", "🗝️", "🔒", "🔓", "🔨", "🪓", "⛏️", "🔧",
	"🔩", "⚙️", "🧲", "🔫", "💣", "🧨", "🪚", "🔪",
	"🗡️", "🛡️", "🏹", "🎯", "🪃", "🧰", "🔬", "🔭",
	"📡", "💉", "🩸", "💊", "🩹", "🧬", "🦠", "🧫",
	// Musical
	"🎸", "🎹", "🥁", "🎺", "🎷", "🪗", "🎻", "🪕",
	"🎵", "🎶", "🎼", "🎤", "🎧", "📻", "🎙️", "📯",
	// Transport
	"🚀", "🛸", "🚁", "⛵", "🚂", "🚗", "🚕", "🏎️",
	"🚌", "🚎", "🚑", "🚒", "🛻", "🚜", "🛵", "🏍️",
	// Sports/Games
	"⚽", "🏀", "🏈", "⚾", "🥎", "🎾", "🏐", "🏉",
	"🎱", "🏓", "🏸", "🥊", "🎿", "⛷️", "🏂", "🪂",
	// Symbols
	"❤️", "🧡", "💛", "💚", "💙", "💜", "🤎", "🖤",
	"💎", "🔥", "💧", "🌀", "🎪", "🎭", "🎨", "🧩",
	"♟️", "🎲", "🧸", "🪆", "🪄", "🎩", "👑", "💍",
	"🏆", "🥇", "🥈", "🥉", "🏅", "🎖️", "🏵️", "🎗️",
}

// ComputeFingerprint computes a deterministic SAS fingerprint for an edge's
// two endpoints. Both sides compute the same fingerprint since both know
// both peer IDs, letting an operator manually confirm an edge out-of-band
// (e.g. via "overlayd route") without trusting the routing layer itself.
// Returns both emoji and numeric representations.
func ComputeFingerprint(a, b peer.ID) (emoji string, numeric string) {
	hash := sha256.Sum256(sortedPeerPair(a, b))

	emojis := make([]string, 4)
	for i := 0; i < 4; i++ {
		idx := int(hash[i*2])
		emojis[i] = emojiTable[idx]
	}
	emoji = strings.Join(emojis, " ")

	num := int(hash[8])<<16 | int(hash[9])<<8 | int(hash[10])
	num = num % 1000000
	numeric = fmt.Sprintf("%03d-%03d", num/1000, num%1000)

	return emoji, numeric
}

// FingerprintPrefix returns a short, storable hex prefix of the edge's
// SAS fingerprint hash, for logging or display.
func FingerprintPrefix(a, b peer.ID) string {
	hash := sha256.Sum256(sortedPeerPair(a, b))
	return fmt.Sprintf("sha256:%x", hash[:4])
}

func sortedPeerPair(a, b peer.ID) []byte {
	aBytes := []byte(a)
	bBytes := []byte(b)
	if a < b {
		return append(aBytes, bBytes...)
	}
	return append(bBytes, aBytes...)
}

package game

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

// NewSeededRNG derives a deterministic RNG from a string seed. Each market
// gets one seeded from its room code and symbol, so a room's price paths
// are reproducible from its code.
func NewSeededRNG(seed string) *rand.Rand {
	hash := sha256.Sum256([]byte(seed))
	seedInt := int64(binary.BigEndian.Uint64(hash[:8]))
	return rand.New(rand.NewSource(seedInt))
}

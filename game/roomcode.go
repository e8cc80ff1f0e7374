package game

import (
	"crypto/rand"

	"stocksim/config"
)

const roomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRoomCode returns a short shareable room code (6 chars, A-Z0-9).
func GenerateRoomCode() string {
	buf := make([]byte, config.RoomCodeLength)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = roomCodeChars[int(b)%len(roomCodeChars)]
	}
	return string(buf)
}

package collab

import (
	"crypto/rand"
	"encoding/hex"
)

// sessionIDBytes is 64 bits of entropy, rendered as 16 hex characters.
const sessionIDBytes = 8

// NewSessionID returns a random, link-shareable session token.
func NewSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

package auth

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	SessionTokenBytes = 32
	APIKeyTokenBytes  = 24
)

// RandomHex returns n bytes from crypto/rand, hex-encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

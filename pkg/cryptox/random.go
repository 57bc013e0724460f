package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// VerifierSize is the byte length of PKCE code verifiers before encoding
// (128 chars once hex encoded).
const VerifierSize = 64

// RandomHex creates a cryptographically secure random value of the
// specified byte length, returned as a lowercase hex string.
func RandomHex(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: failed to read random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

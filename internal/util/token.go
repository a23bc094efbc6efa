package util

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomToken returns nBytes of crypto randomness as unpadded URL-safe base64,
// suitable for cookie values.
func RandomToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

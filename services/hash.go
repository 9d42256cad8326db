package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSecret hashes a presented secret (authorization code, refresh token,
// device code) for storage and lookup. One-way and deterministic: lookups
// re-hash the presented value, plaintext is never stored.
func HashSecret(secret string) string {
	hasher := sha256.New()
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// generateOpaqueSecret generates a secure random string of the given length
// in bytes, hex encoded.
func generateOpaqueSecret(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

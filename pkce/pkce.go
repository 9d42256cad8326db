// Package pkce implements Proof Key for Code Exchange (RFC 7636), S256
// method only.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// verifierBytes yields a 43-character verifier after base64url encoding,
// the RFC 7636 minimum.
const verifierBytes = 32

// GenerateCodeVerifier produces a cryptographically random URL-safe verifier
// of 43 characters (no '+', '/' or '=').
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ComputeCodeChallenge returns the unpadded URL-safe base64 of the sha256
// digest of the verifier. Deterministic: the same verifier always yields the
// same challenge.
func ComputeCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidateCodeChallenge recomputes the challenge from the verifier and
// compares in constant time. Empty input on either side is false, never a
// panic.
func ValidateCodeChallenge(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	computed := ComputeCodeChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

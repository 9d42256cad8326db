package services

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidKeyID = errors.New("invalid key id")

const defaultKeyID = "default"

// TokenSigner signs and verifies access tokens. Keys are HMAC secrets
// indexed by key id; the kid header selects the verification key.
type TokenSigner struct {
	keys map[string][]byte
}

// NewTokenSigner creates a new TokenSigner instance.
func NewTokenSigner() *TokenSigner {
	return &TokenSigner{keys: make(map[string][]byte)}
}

// AddKeySigner registers the default HS256 signing secret.
func (s *TokenSigner) AddKeySigner(secretKey string) {
	s.keys[defaultKeyID] = []byte(secretKey)
}

// AddNamedKeySigner registers an HS256 secret under an explicit key id,
// allowing rotation without invalidating tokens signed by the previous key.
func (s *TokenSigner) AddNamedKeySigner(keyID, secretKey string) {
	s.keys[keyID] = []byte(secretKey)
}

// Sign signs the claims with the named key, or the default key when keyID is
// empty.
func (s *TokenSigner) Sign(claims jwt.Claims, keyID string) (string, error) {
	if keyID == "" {
		keyID = defaultKeyID
	}
	secret, ok := s.keys[keyID]
	if !ok {
		return "", ErrInvalidKeyID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and registered claims of a signed token and
// unmarshals into claims.
func (s *TokenSigner) Parse(tokenString string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		keyID := defaultKeyID
		if kid, ok := t.Header["kid"].(string); ok && kid != "" {
			keyID = kid
		}
		secret, ok := s.keys[keyID]
		if !ok {
			return nil, ErrInvalidKeyID
		}
		return secret, nil
	})
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	return nil
}

// AccessTokenClaims is the claim set carried by minted access tokens.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Scope string   `json:"scope,omitempty"` // space-joined granted scopes
}

package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	minVerifierLength = 43
	maxVerifierLength = 128
)

// DeriveCodeChallenge returns the S256 challenge for a code verifier:
// base64url(sha256(verifier)) without padding.
func DeriveCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// ValidateCodeVerifier checks the RFC 7636 shape of a verifier: 43 to 128
// characters from the unreserved set.
func ValidateCodeVerifier(verifier string) error {
	if len(verifier) < minVerifierLength || len(verifier) > maxVerifierLength {
		return fmt.Errorf("code_verifier length must be between %d and %d characters", minVerifierLength, maxVerifierLength)
	}
	for i := 0; i < len(verifier); i++ {
		if !isUnreserved(verifier[i]) {
			return fmt.Errorf("code_verifier contains invalid character %q", verifier[i])
		}
	}
	return nil
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

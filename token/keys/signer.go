package keys

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// KeyPairSigner issues RS256 tokens. The bridge never issues tokens in
// production; the signer backs local fixture issuers and tests.
type KeyPairSigner struct {
	keyPairs []*KeyPair
}

// NewKeyPairSigner signs with the first key pair and publishes all of them.
func NewKeyPairSigner(keyPairs ...*KeyPair) *KeyPairSigner {
	return &KeyPairSigner{
		keyPairs: keyPairs,
	}
}

func (a *KeyPairSigner) Sign(claims jwt.Claims) (string, error) {
	if len(a.keyPairs) == 0 {
		return "", fmt.Errorf("no signing key")
	}
	kp := a.keyPairs[0]
	token := jwt.NewWithClaims(kp.GetSigningMethod(), claims)
	token.Header["kid"] = kp.KeyID

	signedToken, err := token.SignedString(kp.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token with asymmetric key: %w", err)
	}
	return signedToken, nil
}

// GetJWKS returns the JSON Web Key Set for every key pair
func (a *KeyPairSigner) GetJWKS() *JWKS {
	set := &JWKS{Keys: make([]JWK, 0, len(a.keyPairs))}
	for _, kp := range a.keyPairs {
		set.Keys = append(set.Keys, *kp.ToJWK())
	}
	return set
}

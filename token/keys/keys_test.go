package keys_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/ave-oauth-bridge/token/keys"
	"github.com/stretchr/testify/require"
)

func TestJWKRoundTripsPublicKey(t *testing.T) {
	kp, err := keys.GenerateRSAKeyPair("kid-1", 2048)
	require.NoError(t, err)

	jwk := kp.ToJWK()
	require.Equal(t, "RSA", jwk.Kty)
	require.Equal(t, "kid-1", jwk.Kid)
	require.Equal(t, keys.RS256, jwk.Algorithm())

	pub, err := jwk.RSAPublicKey()
	require.NoError(t, err)
	require.True(t, kp.PublicKey.Equal(pub))
}

func TestRSAPublicKeyRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		jwk  keys.JWK
	}{
		{"wrong type", keys.JWK{Kty: "EC", N: "AQAB", E: "AQAB"}},
		{"bad modulus", keys.JWK{Kty: "RSA", N: "***", E: "AQAB"}},
		{"empty exponent", keys.JWK{Kty: "RSA", N: "AQAB", E: ""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.jwk.RSAPublicKey()
			require.Error(t, err)
		})
	}
}

func TestFindKey(t *testing.T) {
	set := &keys.JWKS{Keys: []keys.JWK{{Kid: "a"}, {Kid: "b"}}}

	require.Equal(t, "b", set.FindKey("b").Kid)
	require.Nil(t, set.FindKey("c"))

	var nilSet *keys.JWKS
	require.Nil(t, nilSet.FindKey("a"))
}

func TestSignerSetsKid(t *testing.T) {
	kp, err := keys.GenerateRSAKeyPair("kid-2", 2048)
	require.NoError(t, err)
	signer := keys.NewKeyPairSigner(kp)

	raw, err := signer.Sign(jwt.MapClaims{"sub": "123"})
	require.NoError(t, err)

	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	require.NoError(t, err)
	require.Equal(t, "kid-2", token.Header["kid"])
	require.Len(t, signer.GetJWKS().Keys, 1)
}

package aveonline_test

import (
	"testing"

	"github.com/jrsteele09/ave-oauth-bridge/platform/aveonline"
	"github.com/stretchr/testify/require"
)

const (
	testSecretKey = "test-secret-key"
	testSecretIV  = "test-secret-iv"
)

func TestCrypterKnownVector(t *testing.T) {
	c, err := aveonline.NewCrypter(testSecretKey, testSecretIV)
	require.NoError(t, err)

	// Produced with openssl enc -aes-256-cbc using the derived key and iv.
	const want = "b21ucGFhanVqNTB2WEJYQ2pmaUhHZ3RJRjgrcUk5R05iZjFGY21nZ3dsYz0="

	got, err := c.Encrypt("jane.doe@example.com")
	require.NoError(t, err)
	require.Equal(t, want, got)

	plain, err := c.Decrypt(want)
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.com", plain)
}

func TestCrypterRoundTrip(t *testing.T) {
	c, err := aveonline.NewCrypter(testSecretKey, testSecretIV)
	require.NoError(t, err)

	for _, in := range []string{"", "a", "exactly sixteen!", "ñandú@correo.co"} {
		enc, err := c.Encrypt(in)
		require.NoError(t, err)
		out, err := c.Decrypt(enc)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestCrypterErrors(t *testing.T) {
	_, err := aveonline.NewCrypter("", testSecretIV)
	require.Error(t, err)
	_, err = aveonline.NewCrypter(testSecretKey, "")
	require.Error(t, err)

	c, err := aveonline.NewCrypter(testSecretKey, testSecretIV)
	require.NoError(t, err)
	other, err := aveonline.NewCrypter("another-key", testSecretIV)
	require.NoError(t, err)

	_, err = c.Decrypt("%%%")
	require.Error(t, err)
	_, err = c.Decrypt("YWJj") // base64("abc"), not base64 inside
	require.Error(t, err)

	enc, err := other.Encrypt("jane.doe@example.com")
	require.NoError(t, err)
	out, err := c.Decrypt(enc)
	if err == nil {
		require.NotEqual(t, "jane.doe@example.com", out)
	}
}

package aveonline

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Crypter implements the platform's AES-256-CBC envelope. The key is the
// first 32 hex characters of sha256(secret key) and the IV the first 16 hex
// characters of sha256(secret iv), both used as raw ASCII bytes. Ciphertext
// is base64 encoded twice.
type Crypter struct {
	key []byte
	iv  []byte
}

func NewCrypter(secretKey, secretIV string) (*Crypter, error) {
	if secretKey == "" {
		return nil, errors.New("[NewCrypter] secret key is required")
	}
	if secretIV == "" {
		return nil, errors.New("[NewCrypter] secret iv is required")
	}
	return &Crypter{
		key: hexDigestPrefix(secretKey, 32),
		iv:  hexDigestPrefix(secretIV, aes.BlockSize),
	}, nil
}

func hexDigestPrefix(secret string, n int) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:])[:n])
}

func (c *Crypter) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("[Crypter Encrypt] %w", err)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)

	first := base64.StdEncoding.EncodeToString(out)
	return base64.StdEncoding.EncodeToString([]byte(first)), nil
}

func (c *Crypter) Decrypt(encoded string) (string, error) {
	first, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("[Crypter Decrypt] outer base64: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(string(first))
	if err != nil {
		return "", fmt.Errorf("[Crypter Decrypt] inner base64: %w", err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", errors.New("[Crypter Decrypt] ciphertext is not a whole number of blocks")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("[Crypter Decrypt] %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("[Crypter Decrypt] %w", err)
	}
	return string(plain), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

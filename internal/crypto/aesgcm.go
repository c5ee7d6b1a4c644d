// Package crypto encrypts and decrypts judge metadata with AES-256-GCM.
// Ciphertexts are base64(12-byte nonce || sealed data || 16-byte tag).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	NonceSize = 12
	TagSize   = 16
)

var (
	// ErrInvalidCiphertext indicates the decoded payload is shorter than a
	// nonce plus an authentication tag and cannot possibly be valid.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: shorter than nonce plus tag")

	// ErrAuthenticationFailed indicates the GCM tag check failed: either the
	// key is wrong or the payload was corrupted or tampered with.
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed: wrong key or tampered payload")
)

func newGCM(keyBase64 string) (cipher.AEAD, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("error creating cipher: %w", err)
	}

	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under the base64-encoded key. A fresh random nonce
// is generated on every call; a nonce must never be reused with the same key.
func Encrypt(plaintext, keyBase64 string) (string, error) {
	gcm, err := newGCM(keyBase64)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("error generating nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt. It returns
// ErrInvalidCiphertext for truncated input and ErrAuthenticationFailed when
// the tag check fails; the two cases are never collapsed into one.
func Decrypt(ciphertextBase64, keyBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", fmt.Errorf("error decoding base64 ciphertext: %w", err)
	}

	if len(raw) < NonceSize+TagSize {
		return "", ErrInvalidCiphertext
	}

	gcm, err := newGCM(keyBase64)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, raw[:NonceSize], raw[NonceSize:], nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}

	return string(plaintext), nil
}

// NewKey generates a random 256-bit key in the base64 encoding expected by
// Encrypt and Decrypt.
func NewKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("error generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

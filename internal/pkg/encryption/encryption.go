// Package encryption seals values at rest with AES-256-GCM.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// KeySize is the required key length in bytes.
const KeySize = 32

// Sealer encrypts and decrypts opaque byte values.
type Sealer interface {
	// Seal encrypts plaintext. The nonce is prepended to the result.
	Seal(plaintext []byte) ([]byte, error)

	// Open decrypts a value produced by Seal.
	Open(sealed []byte) ([]byte, error)
}

// AESSealer implements Sealer using AES-256-GCM.
type AESSealer struct {
	gcm cipher.AEAD
}

// NewAESSealer creates a sealer from a 32 byte key, given either as raw
// bytes or base64-encoded.
func NewAESSealer(key string) (*AESSealer, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		keyBytes = []byte(key)
	}

	if len(keyBytes) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(keyBytes))
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESSealer{gcm: gcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *AESSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed value.
func (s *AESSealer) Open(sealed []byte) ([]byte, error) {
	n := s.gcm.NonceSize()
	if len(sealed) < n {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := s.gcm.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// GenerateKey returns a new random base64-encoded key.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Plain is a Sealer that stores values unencrypted.
type Plain struct{}

// NewPlain creates a pass-through sealer.
func NewPlain() Plain {
	return Plain{}
}

// Seal returns a copy of plaintext.
func (Plain) Seal(plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

// Open returns a copy of sealed.
func (Plain) Open(sealed []byte) ([]byte, error) {
	return append([]byte(nil), sealed...), nil
}

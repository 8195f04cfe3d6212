package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Vault encrypts and decrypts mailbox passwords at rest with AES-256-GCM.
// The key is fixed for the process lifetime; every Encrypt call draws a
// fresh 96-bit nonce. Callers must never log decrypted output.
type Vault struct {
	aead cipher.AEAD
}

// NewVault builds a Vault from a hex-encoded 256-bit key.
func NewVault(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals the plaintext and returns base64 ciphertext (tag appended)
// and base64 nonce.
func (v *Vault) Encrypt(plaintext string) (string, string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", err
	}

	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(nonce),
		nil
}

// Decrypt opens a sealed password. Any tampering with ciphertext or nonce
// fails the tag check and returns an error.
func (v *Vault) Decrypt(ciphertextB64, nonceB64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("base64 decode error: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("base64 decode error: %w", err)
	}
	if len(nonce) != v.aead.NonceSize() {
		return "", errors.New("invalid nonce")
	}

	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("decryption failed")
	}

	return string(plaintext), nil
}

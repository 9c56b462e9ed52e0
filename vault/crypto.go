package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// cipherBox seals and opens key material with AES-256-GCM under the
// server-held master secret. Ciphertext layout: hex(nonce || sealed).
type cipherBox struct {
	aead cipher.AEAD
}

func newCipherBox(masterSecretHex string) (*cipherBox, error) {
	secret, err := hex.DecodeString(masterSecretHex)
	if err != nil {
		return nil, fmt.Errorf("master secret must be hex: %w", err)
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("master secret must be 32 bytes, got %d", len(secret))
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &cipherBox{aead: aead}, nil
}

func (c *cipherBox) seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	return hex.EncodeToString(append(nonce, sealed...)), nil
}

func (c *cipherBox) open(encrypted string) ([]byte, error) {
	raw, err := hex.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("corrupt key record: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return nil, fmt.Errorf("corrupt key record: too short")
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("key decryption failed: %w", err)
	}
	return plaintext, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

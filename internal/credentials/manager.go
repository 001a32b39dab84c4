// Package credentials encrypts payer API credentials at rest and hands
// decrypted copies to adapters per request. Credentials are sealed with
// AES-256-GCM; the key comes from configuration, never the database.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/clearwell-health/therabill/internal/payer"
)

const keyBytes = 32

// Manager seals and opens payer credentials.
type Manager struct {
	aead cipher.AEAD
}

// NewManager builds a Manager from a hex-encoded 256-bit key.
func NewManager(hexKey string) (*Manager, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("credentials: key is not valid hex: %w", err)
	}
	if len(key) != keyBytes {
		return nil, fmt.Errorf("credentials: key must be %d bytes, got %d", keyBytes, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credentials: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credentials: init gcm: %w", err)
	}
	return &Manager{aead: aead}, nil
}

// Encrypt seals a credential. The nonce is prepended to the ciphertext so
// each record is self-contained.
func (m *Manager) Encrypt(cred payer.Credential) ([]byte, error) {
	if cred.Type == "" {
		return nil, fmt.Errorf("credentials: credential type is required")
	}
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("credentials: marshal credential: %w", err)
	}

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("credentials: generate nonce: %w", err)
	}
	return m.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a sealed credential. Tampered or foreign-key ciphertext
// fails authentication.
func (m *Manager) Decrypt(ciphertext []byte) (payer.Credential, error) {
	nonceSize := m.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return payer.Credential{}, fmt.Errorf("credentials: ciphertext too short")
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := m.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return payer.Credential{}, fmt.Errorf("credentials: decrypt failed: %w", err)
	}

	var cred payer.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return payer.Credential{}, fmt.Errorf("credentials: unmarshal credential: %w", err)
	}
	return cred, nil
}

package snapshot

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "legid snapshot v1"

// Sealer encrypts and authenticates snapshot bytes. additional binds a
// ciphertext to its key so entries cannot be swapped on disk.
type Sealer interface {
	Seal(plaintext, additional []byte) ([]byte, error)
	Open(ciphertext, additional []byte) ([]byte, error)
}

// AEADSealer implements Sealer with XChaCha20-Poly1305.
type AEADSealer struct {
	aead cipher.AEAD
}

var _ Sealer = (*AEADSealer)(nil)

// NewSealer derives a 256-bit key from secret with HKDF-SHA256.
func NewSealer(secret string) (*AEADSealer, error) {
	if secret == "" {
		return nil, errors.New("[NewSealer] secret is required")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo)), key); err != nil {
		return nil, fmt.Errorf("[NewSealer] derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("[NewSealer] cipher: %w", err)
	}
	return &AEADSealer{aead: aead}, nil
}

// Seal returns nonce || ciphertext.
func (s *AEADSealer) Seal(plaintext, additional []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("[AEADSealer.Seal] nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, additional), nil
}

func (s *AEADSealer) Open(ciphertext, additional []byte) ([]byte, error) {
	if len(ciphertext) < s.aead.NonceSize() {
		return nil, errors.New("[AEADSealer.Open] ciphertext too short")
	}
	nonce, body := ciphertext[:s.aead.NonceSize()], ciphertext[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, body, additional)
}

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aq2208/pixelmart-api/internal/usecase"
)

const sealedPrefix = "sealed:"

var ErrSealedKeyMismatch = errors.New("sealed value uses an unknown key id")

// Sealer encrypts download references at rest as
// "sealed:<keyID>:" + base64url(nonce || ciphertext).
type Sealer struct {
	keyID     string
	aead      cipher.AEAD // AES-256-GCM
	nonceSize int
}

var _ usecase.Sealer = (*Sealer)(nil)

func NewSealer(km KeyMaterial) (*Sealer, error) {
	if len(km.AESKey) != 32 {
		return nil, fmt.Errorf("aes key must be 32 bytes, got %d", len(km.AESKey))
	}
	if strings.Contains(km.KeyID, ":") {
		return nil, fmt.Errorf("key id %q must not contain ':'", km.KeyID)
	}

	block, err := aes.NewCipher(km.AESKey)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &Sealer{
		keyID:     km.KeyID,
		aead:      aead,
		nonceSize: aead.NonceSize(),
	}, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	nonce := make([]byte, s.nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	// key id is bound as additional data so a value cannot be replayed under another key
	ct := s.aead.Seal(nil, nonce, []byte(plain), []byte(s.keyID))

	out := make([]byte, 0, len(nonce)+len(ct))
	out = append(out, nonce...)
	out = append(out, ct...)
	return sealedPrefix + s.keyID + ":" + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the sealed prefix were written before
// sealing was enabled and are returned as they are.
func (s *Sealer) Open(v string) (string, error) {
	rest, ok := strings.CutPrefix(v, sealedPrefix)
	if !ok {
		return v, nil
	}
	keyID, payload, ok := strings.Cut(rest, ":")
	if !ok {
		return "", errors.New("malformed sealed value")
	}
	if keyID != s.keyID {
		return "", fmt.Errorf("%w: %s", ErrSealedKeyMismatch, keyID)
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	if len(raw) < s.nonceSize+s.aead.Overhead() {
		return "", errors.New("ciphertext too short")
	}
	pt, err := s.aead.Open(nil, raw[:s.nonceSize], raw[s.nonceSize:], []byte(s.keyID))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

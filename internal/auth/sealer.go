package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrUnseal is returned when a sealed value is malformed or was sealed with another key.
var ErrUnseal = errors.New("unable to unseal value")

// Sealer encrypts admin secrets (mailbox credentials, agent emails) at rest.
type Sealer struct {
	key [32]byte
}

// NewSealer builds a Sealer from a hex encoded 32 byte key.
func NewSealer(hexKey string) (*Sealer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secrets key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secrets key must be 32 bytes, got %d", len(raw))
	}
	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal returns base64(nonce || box). Empty input seals to empty output.
func (s *Sealer) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(plain), nil
}

func (s *Sealer) SealAll(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		sealed, err := s.Seal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, sealed)
	}
	return out, nil
}

func (s *Sealer) OpenAll(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		plain, err := s.Open(v)
		if err != nil {
			return nil, err
		}
		out = append(out, plain)
	}
	return out, nil
}

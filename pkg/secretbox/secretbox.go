// Package secretbox seals storage credentials at rest with
// XChaCha20-Poly1305. Tokens are self-describing: a "v1:" prefix marks AEAD
// output, while "xor0:" marks rows written by the legacy XOR obfuscation,
// which remains decodable (never re-encodable) so a rolling migration can
// re-seal credentials as documents are touched.
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	prefixAEAD   = "v1:"
	prefixLegacy = "xor0:"
)

// ErrTokenInvalid is returned for tokens that are malformed, truncated, or
// fail authentication.
var ErrTokenInvalid = errors.New("secretbox: invalid token")

// Box seals and opens credential tokens with a single managed key.
type Box struct {
	key []byte
}

// New constructs a Box from a 32-byte key.
func New(key []byte) (*Box, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secretbox: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Box{key: k}, nil
}

// Seal encrypts plaintext and returns a printable token. Each call uses a
// fresh random nonce, so sealing the same credential twice yields different
// tokens.
func (b *Box) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefixAEAD + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a token produced by Seal, or decodes a legacy XOR token.
func (b *Box) Open(token string) (string, error) {
	switch {
	case strings.HasPrefix(token, prefixAEAD):
		return b.openAEAD(strings.TrimPrefix(token, prefixAEAD))
	case strings.HasPrefix(token, prefixLegacy):
		return b.openLegacy(strings.TrimPrefix(token, prefixLegacy))
	default:
		return "", ErrTokenInvalid
	}
}

func (b *Box) openAEAD(body string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", ErrTokenInvalid
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrTokenInvalid
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrTokenInvalid
	}
	return string(plaintext), nil
}

// openLegacy reverses the repeating-key XOR scheme the original system used.
// It authenticates nothing; callers re-seal the result immediately.
func (b *Box) openLegacy(body string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", ErrTokenInvalid
	}
	out := make([]byte, len(raw))
	for i, c := range raw {
		out[i] = c ^ b.key[i%len(b.key)]
	}
	return string(out), nil
}

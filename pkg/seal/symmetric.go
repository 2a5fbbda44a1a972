package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	keySize      = 32
	ivSize       = 12
	tagSize      = aes.BlockSize
	versionMagic = byte('G')
)

var (
	// ErrShortCiphertext is returned when a sealed value is truncated.
	ErrShortCiphertext = errors.New("sealed value is too short")
	// ErrVersion is returned when a sealed value has an unknown version byte.
	ErrVersion = errors.New("sealed value has unknown version")
	// ErrKeySize is returned for data keys that are not 32 bytes long.
	ErrKeySize = errors.New("data key must be 32 bytes")
)

// SymmetricCipher seals and opens values bound to associated data.
type SymmetricCipher interface {
	Encrypt(aad, plainText []byte) ([]byte, error)
	Decrypt(aad, packedText []byte) ([]byte, error)
	SealString(aad, plainText []byte) (string, error)
	OpenString(aad []byte, sealed string) ([]byte, error)
}

// Symmetric is an AES-GCM SymmetricCipher.
type Symmetric struct {
	aead cipher.AEAD
}

// NewSymmetric returns a cipher for a 32 byte data key.
func NewSymmetric(key []byte) (*Symmetric, error) {
	if len(key) != keySize {
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Symmetric{aead: aead}, nil
}

// Encrypt seals plainText under a random nonce.
// The result is laid out as version || tag || nonce || ciphertext.
func (s *Symmetric) Encrypt(aad, plainText []byte) ([]byte, error) {
	nonce, err := RandomBytes(ivSize)
	if err != nil {
		return nil, err
	}

	sealed := s.aead.Seal(nil, nonce, plainText, aad)
	split := len(sealed) - tagSize

	out := make([]byte, 0, 1+tagSize+ivSize+split)
	out = append(out, versionMagic)
	out = append(out, sealed[split:]...)
	out = append(out, nonce...)
	out = append(out, sealed[:split]...)
	return out, nil
}

// Decrypt opens a value produced by Encrypt with the same aad.
func (s *Symmetric) Decrypt(aad, packedText []byte) ([]byte, error) {
	if len(packedText) < 1+tagSize+ivSize {
		return nil, ErrShortCiphertext
	}
	if packedText[0] != versionMagic {
		return nil, ErrVersion
	}

	tag := packedText[1 : 1+tagSize]
	nonce := packedText[1+tagSize : 1+tagSize+ivSize]
	body := packedText[1+tagSize+ivSize:]

	sealed := make([]byte, 0, len(body)+tagSize)
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	return s.aead.Open(nil, nonce, sealed, aad)
}

// SealString is Encrypt followed by unpadded base64url encoding, suitable
// for cookie values and headers.
func (s *Symmetric) SealString(aad, plainText []byte) (string, error) {
	sealed, err := s.Encrypt(aad, plainText)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// OpenString reverses SealString.
func (s *Symmetric) OpenString(aad []byte, sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("malformed sealed value: %w", err)
	}
	return s.Decrypt(aad, raw)
}

// RandomBytes returns size bytes from crypto/rand.
func RandomBytes(size int) ([]byte, error) {
	value := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, value); err != nil {
		return nil, err
	}
	return value, nil
}

// GenerateKey returns a new base64 encoded data key.
func GenerateKey() (string, error) {
	key, err := RandomBytes(keySize)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.Strict().EncodeToString(key), nil
}

// ParseKey decodes a base64 encoded data key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("bad data key: %w", err)
	}
	if len(key) != keySize {
		return nil, ErrKeySize
	}
	return key, nil
}

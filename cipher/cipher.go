package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"errors"
	"fmt"
)

const (
	// KeySize is the required AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the required GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

var (
	// ErrDecryptFailed indicates the ciphertext or tag failed authentication.
	// Decryption never returns unauthenticated plaintext.
	ErrDecryptFailed = errors.New("identity cipher: decryption failed")
)

// Config carries the server-held key material. Both fields are required;
// the nonce is fixed per deployment to keep encryption deterministic.
type Config struct {
	Key   []byte
	Nonce []byte
}

// EmailCipher encrypts and decrypts identity email addresses. Immutable
// after construction and safe for concurrent use.
type EmailCipher struct {
	aead  gocipher.AEAD
	nonce []byte
}

// New validates cfg and constructs the cipher. Missing or malformed key
// material is a construction error, never a silent fallback.
func New(cfg Config) (*EmailCipher, error) {
	if len(cfg.Key) != KeySize {
		return nil, fmt.Errorf("identity cipher: key must be %d bytes", KeySize)
	}
	if len(cfg.Nonce) != NonceSize {
		return nil, fmt.Errorf("identity cipher: nonce must be %d bytes", NonceSize)
	}

	block, err := aes.NewCipher(cfg.Key)
	if err != nil {
		return nil, err
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	copy(nonce, cfg.Nonce)

	return &EmailCipher{aead: aead, nonce: nonce}, nil
}

// Encrypt returns the ciphertext and authentication tag for email.
// Deterministic: equal inputs produce equal outputs under the same config.
func (c *EmailCipher) Encrypt(email string) (ciphertext, tag []byte, err error) {
	if email == "" {
		return nil, nil, errors.New("identity cipher: empty plaintext")
	}

	sealed := c.aead.Seal(nil, c.nonce, []byte(email), nil)
	split := len(sealed) - TagSize

	return sealed[:split], sealed[split:], nil
}

// Decrypt authenticates and decrypts a (ciphertext, tag) pair produced by
// Encrypt. Any tampering with either part fails with ErrDecryptFailed.
func (c *EmailCipher) Decrypt(ciphertext, tag []byte) (string, error) {
	if len(ciphertext) == 0 || len(tag) != TagSize {
		return "", ErrDecryptFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, c.nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

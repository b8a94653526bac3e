package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const flowSecretSize = 32

// Recovery codes avoid 0/O/1/I so they survive being read over the phone.
const recoveryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCode generates a numeric one-time code with the given digit count.
// Each digit is drawn independently from crypto/rand.
func NewCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digit count")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	code := b.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid code generation length")
	}
	return code, nil
}

// NewFlowSecret generates the random secret backing a correlated flow token.
func NewFlowSecret() ([flowSecretSize]byte, error) {
	var secret [flowSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// EncodeFlowSecret renders a flow secret as a compact opaque token string.
func EncodeFlowSecret(secret [flowSecretSize]byte) string {
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

// DecodeFlowSecret parses a token string produced by EncodeFlowSecret.
func DecodeFlowSecret(token string) ([flowSecretSize]byte, error) {
	var secret [flowSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != flowSecretSize {
		return secret, errors.New("invalid flow token size")
	}

	copy(secret[:], raw)
	return secret, nil
}

// HashSecret is the canonical at-rest hash for codes, tokens, and recovery
// codes. Only hashes are ever stored; plaintext lives in transit only.
func HashSecret(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}

// NewRecoveryCode generates one grouped recovery code, e.g. "XK3QT-9WMRZ".
// length counts alphabet characters and excludes the group separator.
func NewRecoveryCode(length int) (string, error) {
	if length < 8 || length > 20 || length%2 != 0 {
		return "", errors.New("invalid recovery code length")
	}

	alphabetSize := big.NewInt(int64(len(recoveryCodeAlphabet)))

	var b strings.Builder
	b.Grow(length + 1)

	for i := 0; i < length; i++ {
		if i == length/2 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(recoveryCodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NormalizeRecoveryCode strips the separator and uppercases user input so
// hashes match regardless of how the code was typed.
func NormalizeRecoveryCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}

// HashRecoveryCode hashes a normalized recovery code for storage/lookup.
func HashRecoveryCode(code string) [32]byte {
	return sha256.Sum256([]byte(NormalizeRecoveryCode(code)))
}

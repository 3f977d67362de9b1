package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// SecretSize is the raw byte length of session secrets and magic-link tokens.
	SecretSize = 32
	// OTPDigits is the fixed length of numeric one-time codes.
	OTPDigits = 6
)

// NewOTP returns a zero-padded numeric code of the given length drawn
// digit by digit from crypto/rand.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
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

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// IsOTP reports whether code is exactly digits ASCII decimal characters.
func IsOTP(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// NewSecret returns SecretSize random bytes encoded as base64url without padding.
func NewSecret() (string, error) {
	var raw [SecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// IsSecret reports whether s decodes to exactly SecretSize bytes.
func IsSecret(s string) bool {
	if len(s) != base64.RawURLEncoding.EncodedLen(SecretSize) {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil && len(raw) == SecretSize
}

// DigestSecret returns the hex SHA-256 digest used to index high-entropy
// secrets in storage.
func DigestSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

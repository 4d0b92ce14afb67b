package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const signingKeyInfo = "garments-session-jwt-v1"

// DeriveSigningKey stretches the configured secret into a 32 byte HMAC key so
// the raw secret never signs tokens directly.
func DeriveSigningKey(secret string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is empty")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(signingKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

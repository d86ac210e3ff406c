package cbjwt

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const nonceBytes = 32

// NonceSource supplies the nonce header of each token.
type NonceSource interface {
	Nonce() (string, error)
}

// NonceFunc adapts a function to NonceSource.
type NonceFunc func() (string, error)

// Nonce implements NonceSource.
func (f NonceFunc) Nonce() (string, error) {
	return f()
}

// StaticNonce returns the same value for every token.
func StaticNonce(value string) NonceSource {
	return NonceFunc(func() (string, error) {
		if value == "" {
			return "", errors.New("static nonce is empty")
		}
		return value, nil
	})
}

// RandomNonce returns 32 fresh random bytes, hex encoded, for every token.
func RandomNonce() NonceSource {
	return randomNonce{reader: rand.Reader}
}

type randomNonce struct {
	reader io.Reader
}

func (r randomNonce) Nonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := io.ReadFull(r.reader, buf); err != nil {
		return "", fmt.Errorf("read random nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

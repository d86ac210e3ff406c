package cbjwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const nonceHeader = "nonce"

// Signer produces ES256 compact tokens for a single Coinbase API key.
// A Signer is immutable and safe for concurrent use.
type Signer struct {
	keyID string
	key   jwk.Key
	nonce NonceSource
}

type signerOptions struct {
	nonce NonceSource
}

// SignerOption customizes a Signer.
type SignerOption func(*signerOptions)

// WithNonce overrides the nonce strategy. Tokens get a random nonce by default.
func WithNonce(source NonceSource) SignerOption {
	return func(o *signerOptions) {
		if source != nil {
			o.nonce = source
		}
	}
}

// NewSigner parses a PEM encoded P-256 private key (PKCS#8 or SEC1) and
// returns a signer that stamps keyID into every token header.
func NewSigner(keyID string, privateKeyPEM []byte, opts ...SignerOption) (*Signer, error) {
	if strings.TrimSpace(keyID) == "" {
		return nil, newError(ErrCodeConfiguration, errors.New("key id is required"))
	}

	options := signerOptions{nonce: RandomNonce()}
	for _, opt := range opts {
		opt(&options)
	}

	key, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, newError(ErrCodeKeyParse, err)
	}
	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, newError(ErrCodeKeyParse, fmt.Errorf("set kid: %w", err))
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256); err != nil {
		return nil, newError(ErrCodeKeyParse, fmt.Errorf("set alg: %w", err))
	}

	return &Signer{
		keyID: keyID,
		key:   key,
		nonce: options.nonce,
	}, nil
}

// Sign is the one-shot form of NewSigner followed by Signer.Sign.
func Sign(claims Claims, keyID string, privateKeyPEM []byte, opts ...SignerOption) (string, error) {
	signer, err := NewSigner(keyID, privateKeyPEM, opts...)
	if err != nil {
		return "", err
	}
	return signer.Sign(claims)
}

// KeyID returns the key name used as kid.
func (s *Signer) KeyID() string {
	return s.keyID
}

// PublicKey returns the public half of the signing key.
func (s *Signer) PublicKey() (jwk.Key, error) {
	return jwk.PublicKeyOf(s.key)
}

// Sign serializes the claims and returns header.payload.signature.
// The signature is the 64 byte r||s form required by ES256.
func (s *Signer) Sign(claims Claims) (string, error) {
	nonce, err := s.nonce.Nonce()
	if err != nil {
		return "", newError(ErrCodeSigning, fmt.Errorf("generate nonce: %w", err))
	}

	headers := jws.NewHeaders()
	for name, value := range map[string]any{
		jws.KeyIDKey: s.keyID,
		jws.TypeKey:  "JWT",
		nonceHeader:  nonce,
	} {
		if err := headers.Set(name, value); err != nil {
			return "", newError(ErrCodeSigning, fmt.Errorf("set header %q: %w", name, err))
		}
	}

	token, err := claims.token()
	if err != nil {
		return "", newError(ErrCodeSigning, fmt.Errorf("build claims: %w", err))
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256, s.key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", newError(ErrCodeSigning, err)
	}
	return string(signed), nil
}

func parsePrivateKey(privateKeyPEM []byte) (jwk.Key, error) {
	data := bytes.TrimSpace(privateKeyPEM)
	if len(data) == 0 {
		return nil, errors.New("private key is empty")
	}

	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse pem: %w", err)
	}

	ecKey, ok := key.(jwk.ECDSAPrivateKey)
	if !ok {
		return nil, fmt.Errorf("expected EC private key, got %s", key.KeyType())
	}
	if crv := ecKey.Crv(); crv != jwa.P256 {
		return nil, fmt.Errorf("expected curve %s, got %s", jwa.P256, crv)
	}
	return ecKey, nil
}

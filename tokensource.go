package cbjwt

import (
	"time"

	"golang.org/x/oauth2"
)

const bearerTokenType = "Bearer"

// TokenSource mints a new token on every call. Tokens carry a 60 second
// window and a request specific uri, so they are never cached or reused;
// do not wrap it in oauth2.ReuseTokenSource.
type TokenSource struct {
	signer *Signer
	target Target
	now    func() time.Time
}

// SourceOption customizes a TokenSource.
type SourceOption func(*TokenSource)

// WithClock overrides the time used for nbf and exp.
func WithClock(now func() time.Time) SourceOption {
	return func(s *TokenSource) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenSource returns an oauth2.TokenSource signing claims for target.
func NewTokenSource(signer *Signer, target Target, opts ...SourceOption) *TokenSource {
	s := &TokenSource{
		signer: signer,
		target: target,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ oauth2.TokenSource = (*TokenSource)(nil)

// Token implements oauth2.TokenSource.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	claims := s.target.Claims(s.signer.KeyID(), s.now())
	signed, err := s.signer.Sign(claims)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: signed,
		TokenType:   bearerTokenType,
		Expiry:      claims.ExpiresAt,
	}, nil
}

// ForRequest returns a source for another endpoint with the same key.
func (s *TokenSource) ForRequest(method, host, path string) *TokenSource {
	clone := *s
	clone.target.RequestURI = FormatRequestURI(method, host, path)
	return &clone
}

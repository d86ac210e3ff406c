package cbjwt

import (
	"crypto/elliptic"
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/oauth2"
)

func newTestTokenSource(t *testing.T, now *time.Time, opts ...SignerOption) (*TokenSource, jwt.ParseOption) {
	t.Helper()
	key, pemBytes := newECKey(t, elliptic.P256())
	signer, err := NewSigner(testKeyID, pemBytes, opts...)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	source := NewTokenSource(signer, Target{
		Issuer:     testIssuer,
		Service:    testService,
		RequestURI: testRequestURI,
	}, WithClock(func() time.Time { return *now }))
	return source, jwt.WithKey(jwa.ES256, &key.PublicKey)
}

func TestTokenSource_MintsFreshTokens(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	source, verify := newTestTokenSource(t, &now)

	var ts oauth2.TokenSource = source
	first, err := ts.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if first.TokenType != "Bearer" {
		t.Fatalf("unexpected token type: %s", first.TokenType)
	}
	if !first.Expiry.Equal(now.Add(TokenLifetime)) {
		t.Fatalf("unexpected expiry: %s", first.Expiry)
	}

	now = now.Add(time.Second)
	second, err := ts.Token()
	if err != nil {
		t.Fatalf("Token second call: %v", err)
	}
	if first.AccessToken == second.AccessToken {
		t.Fatal("expected a new token per call")
	}

	parsed, err := jwt.Parse([]byte(second.AccessToken), verify, jwt.WithValidate(false))
	if err != nil {
		t.Fatalf("jwt.Parse: %v", err)
	}
	if parsed.Subject() != testKeyID {
		t.Fatalf("unexpected subject: %s", parsed.Subject())
	}
	if !parsed.NotBefore().Equal(now) {
		t.Fatalf("unexpected nbf: %s", parsed.NotBefore())
	}
}

func TestTokenSource_ForRequest(t *testing.T) {
	now := time.Now()
	source, verify := newTestTokenSource(t, &now)

	orders := source.ForRequest("post", "api.coinbase.com", "/api/v3/brokerage/orders")
	tok, err := orders.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	parsed, err := jwt.Parse([]byte(tok.AccessToken), verify, jwt.WithValidate(false))
	if err != nil {
		t.Fatalf("jwt.Parse: %v", err)
	}
	if got := stringClaim(t, parsed, uriClaim); got != "POST api.coinbase.com/api/v3/brokerage/orders" {
		t.Fatalf("unexpected uri: %s", got)
	}

	original, err := source.Token()
	if err != nil {
		t.Fatalf("Token original: %v", err)
	}
	parsed, err = jwt.Parse([]byte(original.AccessToken), verify, jwt.WithValidate(false))
	if err != nil {
		t.Fatalf("jwt.Parse: %v", err)
	}
	if got := stringClaim(t, parsed, uriClaim); got != testRequestURI {
		t.Fatalf("original source changed: %s", got)
	}
}

func TestTokenSource_PropagatesSigningError(t *testing.T) {
	now := time.Now()
	failing := NonceFunc(func() (string, error) { return "", errors.New("no entropy") })
	source, _ := newTestTokenSource(t, &now, WithNonce(failing))

	tok, err := source.Token()
	if tok != nil {
		t.Fatalf("expected nil token, got %+v", tok)
	}
	var e *Error
	if !errors.As(err, &e) || e.Code != ErrCodeSigning {
		t.Fatalf("expected signing error, got %v", err)
	}
}

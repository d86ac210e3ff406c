package cbjwt

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenLifetime is the validity window of every minted token.
const TokenLifetime = 60 * time.Second

const uriClaim = "uri"

const (
	DefaultIssuer     = "coinbase-cloud"
	DefaultService    = "retail_rest_api_proxy"
	DefaultRequestURI = "GET api.coinbase.com/api/v3/brokerage/accounts"
)

// Claims is the payload of a Coinbase API token.
type Claims struct {
	Subject    string
	Issuer     string
	NotBefore  time.Time
	ExpiresAt  time.Time
	Audience   []string
	RequestURI string
}

// Target groups the per-deployment values that, together with the key name,
// determine the claims of a token.
type Target struct {
	Issuer     string
	Service    string
	RequestURI string
}

// DefaultTarget authorizes listing brokerage accounts.
func DefaultTarget() Target {
	return Target{
		Issuer:     DefaultIssuer,
		Service:    DefaultService,
		RequestURI: DefaultRequestURI,
	}
}

// FormatRequestURI renders the "METHOD host/path" literal expected in the uri claim.
func FormatRequestURI(method, host, path string) string {
	host = strings.TrimSuffix(host, "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s %s%s", strings.ToUpper(method), host, path)
}

// BuildClaims returns claims valid from now for TokenLifetime.
// The request URI is taken as is.
func BuildClaims(subject, issuer, service, requestURI string, now time.Time) Claims {
	nbf := now.Truncate(time.Second)
	return Claims{
		Subject:    subject,
		Issuer:     issuer,
		NotBefore:  nbf,
		ExpiresAt:  nbf.Add(TokenLifetime),
		Audience:   []string{service},
		RequestURI: requestURI,
	}
}

// Claims builds the claims of this target for the given key name.
func (t Target) Claims(subject string, now time.Time) Claims {
	return BuildClaims(subject, t.Issuer, t.Service, t.RequestURI, now)
}

func (c Claims) token() (jwt.Token, error) {
	return jwt.NewBuilder().
		Subject(c.Subject).
		Issuer(c.Issuer).
		NotBefore(c.NotBefore).
		Expiration(c.ExpiresAt).
		Audience(append([]string(nil), c.Audience...)).
		Claim(uriClaim, c.RequestURI).
		Build()
}

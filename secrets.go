package cbjwt

import (
	"context"
	"errors"
	"os"
)

// ErrSecretNotFound reports that a resolver has no value for a name.
var ErrSecretNotFound = errors.New("secret not found")

// SecretResolver looks up named secrets such as the key name and private key.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// ResolverFunc adapts a function to SecretResolver.
type ResolverFunc func(ctx context.Context, name string) (string, error)

// Resolve implements SecretResolver.
func (f ResolverFunc) Resolve(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// EnvResolver reads secrets from the process environment.
// Empty variables are treated as unset.
type EnvResolver struct{}

// Resolve implements SecretResolver.
func (EnvResolver) Resolve(_ context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

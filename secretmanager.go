package cbjwt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	secretmanager "google.golang.org/api/secretmanager/v1"
)

const defaultSecretVersion = "latest"

// SecretManagerConfig selects the Google Cloud project holding the secrets.
type SecretManagerConfig struct {
	Project string
	Version string
}

// SecretManagerResolver resolves secrets from Google Secret Manager.
// A name maps to projects/{Project}/secrets/{name}/versions/{Version}.
type SecretManagerResolver struct {
	cfg     SecretManagerConfig
	service *secretmanager.Service
}

// NewSecretManagerResolver builds a resolver using Application Default
// Credentials unless opts say otherwise.
func NewSecretManagerResolver(ctx context.Context, cfg SecretManagerConfig, opts ...option.ClientOption) (*SecretManagerResolver, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, newError(ErrCodeConfiguration, errors.New("secret manager project is required"))
	}
	if cfg.Version == "" {
		cfg.Version = defaultSecretVersion
	}
	service, err := secretmanager.NewService(ctx, opts...)
	if err != nil {
		return nil, newError(ErrCodeConfiguration, fmt.Errorf("create secret manager client: %w", err))
	}
	return &SecretManagerResolver{cfg: cfg, service: service}, nil
}

// Resolve implements SecretResolver.
func (r *SecretManagerResolver) Resolve(ctx context.Context, name string) (string, error) {
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", r.cfg.Project, name, r.cfg.Version)
	resp, err := r.service.Projects.Secrets.Versions.Access(resource).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return "", fmt.Errorf("%s: %w", resource, ErrSecretNotFound)
		}
		return "", fmt.Errorf("access %s: %w", resource, err)
	}
	if resp.Payload == nil || resp.Payload.Data == "" {
		return "", fmt.Errorf("%s: %w", resource, ErrSecretNotFound)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", resource, err)
	}
	return string(data), nil
}

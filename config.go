package cbjwt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// KeyNameEnv holds the Coinbase API key name, used as sub and kid.
	KeyNameEnv = "JWT_KEY_NAME"
	// PrivateKeyEnv holds the PEM encoded EC private key.
	PrivateKeyEnv = "JWT_SECRET"
)

const (
	NonceModeRandom = "random"
	NonceModeStatic = "static"

	SecretSourceEnv = "env"
	SecretSourceGCP = "gcp"
)

// Config holds the non-secret settings of the token minter.
type Config struct {
	Issuer       string `envconfig:"JWT_ISSUER" default:"coinbase-cloud"`
	Service      string `envconfig:"JWT_SERVICE" default:"retail_rest_api_proxy"`
	RequestURI   string `envconfig:"JWT_REQUEST_URI" default:"GET api.coinbase.com/api/v3/brokerage/accounts"`
	NonceMode    string `envconfig:"JWT_NONCE_MODE" default:"random"`
	Nonce        string `envconfig:"JWT_NONCE"`
	SecretSource string `envconfig:"JWT_SECRET_SOURCE" default:"env"`

	GCPProject       string `envconfig:"JWT_GCP_PROJECT"`
	GCPSecretVersion string `envconfig:"JWT_GCP_SECRET_VERSION" default:"latest"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Credentials are the secrets required to sign.
type Credentials struct {
	KeyName       string
	PrivateKeyPEM []byte
}

// LoadEnvFile populates unset environment variables from a dotenv file.
// A missing file is not an error; loaded reports whether it was read.
func LoadEnvFile(path string) (loaded bool, err error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}

// LoadConfig reads settings from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, newError(ErrCodeConfiguration, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize trims values and lowercases enumerations.
func (c *Config) normalize() {
	c.Issuer = strings.TrimSpace(c.Issuer)
	c.Service = strings.TrimSpace(c.Service)
	c.RequestURI = strings.TrimSpace(c.RequestURI)
	c.NonceMode = strings.ToLower(strings.TrimSpace(c.NonceMode))
	c.SecretSource = strings.ToLower(strings.TrimSpace(c.SecretSource))
	if c.NonceMode == "" {
		c.NonceMode = NonceModeRandom
	}
	if c.SecretSource == "" {
		c.SecretSource = SecretSourceEnv
	}
	if c.GCPSecretVersion == "" {
		c.GCPSecretVersion = defaultSecretVersion
	}
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	var err error
	switch {
	case c.Issuer == "":
		err = errors.New("issuer is required")
	case c.Service == "":
		err = errors.New("service is required")
	case c.NonceMode != NonceModeRandom && c.NonceMode != NonceModeStatic:
		err = fmt.Errorf("unknown nonce mode %q", c.NonceMode)
	case c.NonceMode == NonceModeStatic && c.Nonce == "":
		err = errors.New("JWT_NONCE is required when nonce mode is static")
	case c.SecretSource != SecretSourceEnv && c.SecretSource != SecretSourceGCP:
		err = fmt.Errorf("unknown secret source %q", c.SecretSource)
	case c.SecretSource == SecretSourceGCP && c.GCPProject == "":
		err = errors.New("JWT_GCP_PROJECT is required when secret source is gcp")
	}
	if err != nil {
		return newError(ErrCodeConfiguration, err)
	}
	return nil
}

// Target returns the claims target described by the configuration.
func (c Config) Target() Target {
	return Target{
		Issuer:     c.Issuer,
		Service:    c.Service,
		RequestURI: c.RequestURI,
	}
}

// NonceSource returns the configured nonce strategy.
func (c Config) NonceSource() NonceSource {
	if c.NonceMode == NonceModeStatic {
		return StaticNonce(c.Nonce)
	}
	return RandomNonce()
}

// LoadCredentials resolves the key name and private key. The key name is
// checked first; a missing value yields a configuration error naming it.
func LoadCredentials(ctx context.Context, resolver SecretResolver, keyNameVar, privateKeyVar string) (Credentials, error) {
	if resolver == nil {
		resolver = EnvResolver{}
	}
	keyName, err := resolveRequired(ctx, resolver, keyNameVar)
	if err != nil {
		return Credentials{}, err
	}
	pem, err := resolveRequired(ctx, resolver, privateKeyVar)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		KeyName:       strings.TrimSpace(keyName),
		PrivateKeyPEM: []byte(expandNewlines(pem)),
	}, nil
}

func resolveRequired(ctx context.Context, resolver SecretResolver, name string) (string, error) {
	value, err := resolver.Resolve(ctx, name)
	switch {
	case errors.Is(err, ErrSecretNotFound):
		return "", newError(ErrCodeConfiguration, fmt.Errorf("%s is not set", name))
	case err != nil:
		return "", newError(ErrCodeConfiguration, fmt.Errorf("resolve %s: %w", name, err))
	case strings.TrimSpace(value) == "":
		return "", newError(ErrCodeConfiguration, fmt.Errorf("%s is empty", name))
	}
	return value, nil
}

// expandNewlines turns the literal \n of single-line PEM values into newlines.
func expandNewlines(value string) string {
	if strings.Contains(value, "\n") {
		return value
	}
	return strings.ReplaceAll(value, `\n`, "\n")
}

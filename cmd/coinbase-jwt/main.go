// Command coinbase-jwt prints an ES256 JWT for one Coinbase Advanced Trade API request.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cbjwt "github.com/bionicotaku/lingo-utils-cbjwt"
)

const (
	exitOK = iota
	exitFailure
	exitConfiguration
	exitKeyParse
	exitSigning
)

type options struct {
	envPath   string
	uri       string
	service   string
	issuer    string
	nonceMode string
	timeout   time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfiguration
	}

	logger, cfg, err := setup(opts, stderr)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return exitCode(err)
	}
	defer func() { _ = logger.Sync() }()

	token, err := mint(ctx, cfg, opts.timeout, logger)
	if err != nil {
		logger.Error(failureMessage(err), zap.Error(err))
		return exitCode(err)
	}

	if _, err := fmt.Fprintln(stdout, token); err != nil {
		logger.Error("write token", zap.Error(err))
		return exitFailure
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("coinbase-jwt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.envPath, "env", defaultEnvPath(), "Path to .env file (env JWT_ENV_FILE)")
	fs.StringVar(&opts.uri, "uri", "", `Request to authorize, "METHOD host/path" (env JWT_REQUEST_URI)`)
	fs.StringVar(&opts.service, "service", "", "Audience service name (env JWT_SERVICE)")
	fs.StringVar(&opts.issuer, "issuer", "", "Issuer claim (env JWT_ISSUER)")
	fs.StringVar(&opts.nonceMode, "nonce-mode", "", "Nonce strategy: random or static (env JWT_NONCE_MODE)")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Timeout for resolving secrets")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// setup runs once before anything else: env file, settings, logger.
// The returned logger is usable even when err is non-nil.
func setup(opts options, stderr io.Writer) (*zap.Logger, cbjwt.Config, error) {
	loaded, envErr := cbjwt.LoadEnvFile(opts.envPath)

	cfg, err := cbjwt.LoadConfig()
	level := cfg.LogLevel
	if err != nil {
		level = "info"
	}
	logger := newLogger(level, stderr)

	switch {
	case envErr != nil:
		logger.Warn("env file not loaded", zap.String("path", opts.envPath), zap.Error(envErr))
	case !loaded && opts.envPath != "":
		logger.Info("env file not found, using process environment", zap.String("path", opts.envPath))
	case loaded:
		logger.Debug("env file loaded", zap.String("path", opts.envPath))
	}
	if err != nil {
		return logger, cbjwt.Config{}, err
	}

	applyOverrides(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return logger, cbjwt.Config{}, err
	}
	return logger, cfg, nil
}

func applyOverrides(cfg *cbjwt.Config, opts options) {
	if opts.uri != "" {
		cfg.RequestURI = opts.uri
	}
	if opts.service != "" {
		cfg.Service = opts.service
	}
	if opts.issuer != "" {
		cfg.Issuer = opts.issuer
	}
	if opts.nonceMode != "" {
		cfg.NonceMode = opts.nonceMode
	}
}

func mint(ctx context.Context, cfg cbjwt.Config, timeout time.Duration, logger *zap.Logger) (string, error) {
	resolveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := newResolver(resolveCtx, cfg)
	if err != nil {
		return "", err
	}
	creds, err := cbjwt.LoadCredentials(resolveCtx, resolver, cbjwt.KeyNameEnv, cbjwt.PrivateKeyEnv)
	if err != nil {
		return "", err
	}

	signer, err := cbjwt.NewSigner(creds.KeyName, creds.PrivateKeyPEM, cbjwt.WithNonce(cfg.NonceSource()))
	if err != nil {
		return "", err
	}

	claims := cfg.Target().Claims(creds.KeyName, time.Now())
	token, err := signer.Sign(claims)
	if err != nil {
		return "", err
	}
	logger.Debug("token minted",
		zap.String("kid", creds.KeyName),
		zap.String("uri", claims.RequestURI),
		zap.String("nonce_mode", cfg.NonceMode),
		zap.Time("expires_at", claims.ExpiresAt),
	)
	return token, nil
}

func newResolver(ctx context.Context, cfg cbjwt.Config) (cbjwt.SecretResolver, error) {
	if cfg.SecretSource == cbjwt.SecretSourceGCP {
		return cbjwt.NewSecretManagerResolver(ctx, cbjwt.SecretManagerConfig{
			Project: cfg.GCPProject,
			Version: cfg.GCPSecretVersion,
		})
	}
	return cbjwt.EnvResolver{}, nil
}

func newLogger(level string, w io.Writer) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), lvl)
	return zap.New(core)
}

func exitCode(err error) int {
	var e *cbjwt.Error
	if !errors.As(err, &e) {
		return exitFailure
	}
	switch e.Code {
	case cbjwt.ErrCodeConfiguration:
		return exitConfiguration
	case cbjwt.ErrCodeKeyParse:
		return exitKeyParse
	case cbjwt.ErrCodeSigning:
		return exitSigning
	default:
		return exitFailure
	}
}

func failureMessage(err error) string {
	var e *cbjwt.Error
	if !errors.As(err, &e) {
		return "failed to mint token"
	}
	switch e.Code {
	case cbjwt.ErrCodeConfiguration:
		return "missing or invalid configuration; check JWT_KEY_NAME and JWT_SECRET"
	case cbjwt.ErrCodeKeyParse:
		return "private key is not a PEM encoded P-256 EC key"
	default:
		return "internal signing failure"
	}
}

func defaultEnvPath() string {
	if path := os.Getenv("JWT_ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

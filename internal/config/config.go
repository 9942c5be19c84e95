package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process-wide configuration, parsed once at startup and
// read-only afterwards. Every component that needs a value (signing
// secret, trust anchor, IdP client credentials) receives it explicitly.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"QuanTrust"`
	Env     string `env:"ENV" envDefault:"DEV"`
	Addr    string `env:"ADDR" envDefault:":5000"`

	// mTLS transport material. All three must be set for the TLS listener;
	// without them the server runs plaintext for local development and the
	// gatekeeper rejects every non-preflight request.
	TLSCertFile  string `env:"TLS_CERT_FILE"`
	TLSKeyFile   string `env:"TLS_KEY_FILE"`
	ClientCAFile string `env:"TLS_CLIENT_CA_FILE"`

	JWTSecret       string        `env:"JWT_SECRET" envDefault:"super_secret_key_change_me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	KeycloakTokenURL    string        `env:"KEYCLOAK_TOKEN_URL"`
	KeycloakIssuerURL   string        `env:"KEYCLOAK_ISSUER_URL"`
	KeycloakClientID    string        `env:"KEYCLOAK_CLIENT_ID"`
	KeycloakSecret      string        `env:"KEYCLOAK_CLIENT_SECRET"`
	KeycloakRedirectURI string        `env:"KEYCLOAK_REDIRECT_URI"`
	KeycloakScopes      []string      `env:"KEYCLOAK_SCOPES" envSeparator:"," envDefault:"openid,profile,email"`
	KeycloakTimeout     time.Duration `env:"KEYCLOAK_TIMEOUT" envDefault:"10s"`
	// SSOVerifyTokens switches the broker from the historical unverified
	// claim decode to signature-checked decoding via OIDC discovery.
	SSOVerifyTokens bool `env:"SSO_VERIFY_TOKENS" envDefault:"false"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`

	RateLimitPerSecond int `env:"RATE_LIMIT_PER_SECOND" envDefault:"10"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"20"`

	PostgresDSN string `env:"PG_DSN"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SSOConfigured reports whether the federated login path has the settings
// it needs.
func (c Config) SSOConfigured() bool {
	return c.KeycloakTokenURL != "" && c.KeycloakClientID != ""
}

// TLSConfigured reports whether the mTLS listener material is present.
func (c Config) TLSConfigured() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != "" && c.ClientCAFile != ""
}

// TLSConfig builds the listener TLS configuration: server certificate plus
// the client-certificate trust anchor. Certificates are requested and
// verified when offered; the gatekeeper middleware enforces presence so
// that preflight requests on certless connections still pass.
func (c Config) TLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server key pair: %w", err)
	}

	caPEM, err := os.ReadFile(c.ClientCAFile)
	if err != nil {
		return nil, fmt.Errorf("read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("client CA %s contains no certificates", c.ClientCAFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.VerifyClientCertIfGiven,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

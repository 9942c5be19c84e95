package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theavidstallion/quantrust/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":5000", cfg.Addr)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, []string{"openid", "profile", "email"}, cfg.KeycloakScopes)
	require.False(t, cfg.SSOConfigured())
	require.False(t, cfg.TLSConfigured())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ADDR", ":8443")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("KEYCLOAK_TOKEN_URL", "https://idp.example.com/token")
	t.Setenv("KEYCLOAK_CLIENT_ID", "quantrust")
	t.Setenv("KEYCLOAK_SCOPES", "openid,email")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":8443", cfg.Addr)
	require.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, []string{"openid", "email"}, cfg.KeycloakScopes)
	require.True(t, cfg.SSOConfigured())
}

func TestTLSConfiguredNeedsAllThreeFiles(t *testing.T) {
	t.Setenv("TLS_CERT_FILE", "/etc/certs/server.crt")
	t.Setenv("TLS_KEY_FILE", "/etc/certs/server.key")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.False(t, cfg.TLSConfigured())

	t.Setenv("TLS_CLIENT_CA_FILE", "/etc/certs/clients-ca.crt")
	cfg, err = config.Load()
	require.NoError(t, err)
	require.True(t, cfg.TLSConfigured())
}

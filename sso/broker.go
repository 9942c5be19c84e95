package sso

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/theavidstallion/quantrust/identity"
)

// ErrProviderRejected means the identity provider refused the authorization
// code. Codes are single-use, so the broker never retries; the caller must
// restart the interactive flow.
var ErrProviderRejected = errors.New("identity provider rejected the authorization code")

// adminRoleClaim is the federated role claim that maps to a local Admin
// candidate on first login.
const adminRoleClaim = "Admin"

// Config holds the settings for one external identity provider client.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// Timeout bounds the token-endpoint call so a stalled IdP cannot stall
	// the request indefinitely.
	Timeout time.Duration
}

// Broker exchanges an authorization code with the external identity
// provider and reconciles the result against local identity records.
// One exchange attempt per code; the flow is one-shot.
type Broker struct {
	oauth      *oauth2.Config
	identities identity.Repo
	verifier   *oidc.IDTokenVerifier
	timeout    time.Duration
}

// BrokerOption modifies a Broker.
type BrokerOption func(*Broker)

// WithIDTokenVerifier switches the broker from unverified claim decoding to
// signature-checked decoding against the provider's published keys.
func WithIDTokenVerifier(verifier *oidc.IDTokenVerifier) BrokerOption {
	return func(b *Broker) {
		b.verifier = verifier
	}
}

func NewBroker(cfg Config, identities identity.Repo, options ...BrokerOption) (*Broker, error) {
	if cfg.TokenURL == "" {
		return nil, errors.New("[NewBroker] token URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[NewBroker] client ID is required")
	}
	if identities == nil {
		return nil, errors.New("[NewBroker] identity repo is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	b := &Broker{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL: cfg.TokenURL,
				// Keycloak accepts credentials in the form body; keep the
				// wire shape of a plain form-encoded grant.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		identities: identities,
		timeout:    timeout,
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

// Exchange runs the one-shot code exchange: grant POST, claim decoding,
// and create-or-adopt reconciliation. The returned identity is the local
// account the session should be scoped to, never the IdP's token subject.
func (b *Broker) Exchange(ctx context.Context, code string) (*identity.Identity, error) {
	if code == "" {
		return nil, errors.Wrap(ErrProviderRejected, "[Broker.Exchange] empty authorization code")
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	tok, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, errors.Wrap(ErrProviderRejected, retrieveErr.Error())
		}
		return nil, errors.Wrap(err, "[Broker.Exchange] token endpoint")
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.Wrap(ErrProviderRejected, "[Broker.Exchange] response missing id_token")
	}

	email, err := b.emailFromIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	candidate := identity.RoleUser
	if hasRealmRole(tok.AccessToken, adminRoleClaim) {
		candidate = identity.RoleAdmin
	}

	// Create-or-adopt: the upsert is atomic at the storage layer, and an
	// existing account's local role is authoritative over the federated
	// claim.
	ident, err := b.identities.UpsertByEmail(ctx, email, candidate, identity.ProviderKeycloak)
	if err != nil {
		return nil, errors.Wrap(err, "[Broker.Exchange] upsert identity")
	}
	return ident, nil
}

func (b *Broker) emailFromIDToken(ctx context.Context, rawIDToken string) (string, error) {
	if b.verifier != nil {
		idToken, err := b.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return "", errors.Wrap(ErrProviderRejected, "[Broker] id_token verification failed")
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil || claims.Email == "" {
			return "", errors.Wrap(ErrProviderRejected, "[Broker] id_token missing email")
		}
		return claims.Email, nil
	}

	claims, err := decodeUnverified(rawIDToken)
	if err != nil {
		return "", errors.Wrap(ErrProviderRejected, "[Broker] undecodable id_token")
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", errors.Wrap(ErrProviderRejected, "[Broker] id_token missing email")
	}
	return email, nil
}

// hasRealmRole checks realm_access.roles of the IdP access token for the
// given role claim.
func hasRealmRole(rawAccessToken, role string) bool {
	claims, err := decodeUnverified(rawAccessToken)
	if err != nil {
		return false
	}
	realmAccess, _ := claims["realm_access"].(map[string]any)
	roles, _ := realmAccess["roles"].([]any)
	for _, r := range roles {
		if s, ok := r.(string); ok && s == role {
			return true
		}
	}
	return false
}

func decodeUnverified(raw string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

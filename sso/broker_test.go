package sso_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/theavidstallion/quantrust/identity"
	fakeidentityrepo "github.com/theavidstallion/quantrust/identity/repofake"
	"github.com/theavidstallion/quantrust/sso"
)

const (
	testClientID     = "quantrust-client"
	testClientSecret = "quantrust-secret"
	testUserEmail    = "john.doe@example.com"
)

// signTestToken mints an HS256 token the way a test IdP would. The broker
// decodes these without verification, so the signing key is irrelevant.
func signTestToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("idp-key"))
	require.NoError(t, err)
	return signed
}

// newTestIdP serves the token endpoint of a fake identity provider. It
// verifies the wire shape of the grant request before answering.
func newTestIdP(t *testing.T, idToken, accessToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, testClientID, r.PostForm.Get("client_id"))
		require.Equal(t, testClientSecret, r.PostForm.Get("client_secret"))
		require.NotEmpty(t, r.PostForm.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"id_token":     idToken,
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	}))
}

func newTestBroker(t *testing.T, tokenURL string, repo identity.Repo) *sso.Broker {
	t.Helper()
	broker, err := sso.NewBroker(sso.Config{
		TokenURL:     tokenURL,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURI:  "http://localhost:5173/callback",
		Scopes:       []string{"openid", "profile", "email"},
		Timeout:      5 * time.Second,
	}, repo)
	require.NoError(t, err)
	return broker
}

func TestNewBrokerValidation(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()

	_, err := sso.NewBroker(sso.Config{ClientID: testClientID}, repo)
	require.Error(t, err)

	_, err = sso.NewBroker(sso.Config{TokenURL: "http://idp/token"}, repo)
	require.Error(t, err)

	_, err = sso.NewBroker(sso.Config{TokenURL: "http://idp/token", ClientID: testClientID}, nil)
	require.Error(t, err)
}

func TestExchangeFirstLoginCreatesUser(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	idToken := signTestToken(t, jwtlib.MapClaims{"email": testUserEmail})
	accessToken := signTestToken(t, jwtlib.MapClaims{
		"realm_access": map[string]any{"roles": []any{"offline_access", "uma_authorization"}},
	})

	idp := newTestIdP(t, idToken, accessToken)
	defer idp.Close()

	broker := newTestBroker(t, idp.URL, repo)
	ident, err := broker.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, testUserEmail, ident.Email)
	require.Equal(t, identity.RoleUser, ident.Role)
	require.Equal(t, identity.ProviderKeycloak, ident.Provider)
	require.NotEmpty(t, ident.ID)
}

func TestExchangeAdminRealmRole(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	idToken := signTestToken(t, jwtlib.MapClaims{"email": testUserEmail})
	accessToken := signTestToken(t, jwtlib.MapClaims{
		"realm_access": map[string]any{"roles": []any{"Admin"}},
	})

	idp := newTestIdP(t, idToken, accessToken)
	defer idp.Close()

	broker := newTestBroker(t, idp.URL, repo)
	ident, err := broker.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, identity.RoleAdmin, ident.Role)
}

func TestExchangeExistingAccountKeepsLocalRole(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	ctx := context.Background()

	err := repo.Create(ctx, &identity.Identity{
		Email:    testUserEmail,
		Role:     identity.RoleManager,
		Provider: identity.ProviderLocal,
	})
	require.NoError(t, err)

	idToken := signTestToken(t, jwtlib.MapClaims{"email": testUserEmail})
	accessToken := signTestToken(t, jwtlib.MapClaims{
		"realm_access": map[string]any{"roles": []any{"Admin"}},
	})

	idp := newTestIdP(t, idToken, accessToken)
	defer idp.Close()

	broker := newTestBroker(t, idp.URL, repo)
	ident, err := broker.Exchange(ctx, "auth-code")
	require.NoError(t, err)
	require.Equal(t, identity.RoleManager, ident.Role)
	require.Equal(t, identity.ProviderKeycloak, ident.Provider)
}

func TestExchangeEmptyCode(t *testing.T) {
	broker := newTestBroker(t, "http://idp.invalid/token", fakeidentityrepo.NewFakeIdentityRepo())
	_, err := broker.Exchange(context.Background(), "")
	require.ErrorIs(t, err, sso.ErrProviderRejected)
}

func TestExchangeProviderRejection(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))
	defer idp.Close()

	broker := newTestBroker(t, idp.URL, fakeidentityrepo.NewFakeIdentityRepo())
	_, err := broker.Exchange(context.Background(), "spent-code")
	require.ErrorIs(t, err, sso.ErrProviderRejected)
}

func TestExchangeMissingIDToken(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "opaque", "token_type": "Bearer"})
	}))
	defer idp.Close()

	broker := newTestBroker(t, idp.URL, fakeidentityrepo.NewFakeIdentityRepo())
	_, err := broker.Exchange(context.Background(), "auth-code")
	require.ErrorIs(t, err, sso.ErrProviderRejected)
}

func TestExchangeIDTokenWithoutEmail(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	idToken := signTestToken(t, jwtlib.MapClaims{"sub": "keycloak-subject"})
	accessToken := signTestToken(t, jwtlib.MapClaims{})

	idp := newTestIdP(t, idToken, accessToken)
	defer idp.Close()

	broker := newTestBroker(t, idp.URL, repo)
	_, err := broker.Exchange(context.Background(), "auth-code")
	require.ErrorIs(t, err, sso.ErrProviderRejected)

	list, listErr := repo.List(context.Background())
	require.NoError(t, listErr)
	require.Empty(t, list)
}

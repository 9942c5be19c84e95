package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/theavidstallion/quantrust/activity"
	fakelogrepo "github.com/theavidstallion/quantrust/activity/repofake"
	"github.com/theavidstallion/quantrust/identity"
	fakeidentityrepo "github.com/theavidstallion/quantrust/identity/repofake"
	"github.com/theavidstallion/quantrust/session"
	"github.com/theavidstallion/quantrust/sso"
	"github.com/theavidstallion/quantrust/token"
)

const (
	secretStr        = "test-signing-secret"
	testUserEmail    = "john.doe@example.com"
	testUserPassword = "password123"
)

// fakeBroker satisfies session.Broker without a live identity provider.
type fakeBroker struct {
	ident *identity.Identity
	err   error
}

func (b *fakeBroker) Exchange(_ context.Context, _ string) (*identity.Identity, error) {
	return b.ident, b.err
}

// testFixture holds all test dependencies
type testFixture struct {
	identityRepo *fakeidentityrepo.FakeIdentityRepo
	logRepo      *fakelogrepo.FakeLogRepo
	issuer       *token.Issuer
	broker       *fakeBroker
	service      *session.Service
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	ir := fakeidentityrepo.NewFakeIdentityRepo()
	lr := fakelogrepo.NewFakeLogRepo()

	issuer, err := token.NewIssuer(secretStr, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	broker := &fakeBroker{}
	recorder := activity.NewRecorder(lr, zerolog.Nop())

	svc, err := session.NewService(
		session.Repos{Identities: ir, Activity: lr},
		issuer,
		broker,
		recorder,
	)
	require.NoError(t, err)

	return &testFixture{
		identityRepo: ir,
		logRepo:      lr,
		issuer:       issuer,
		broker:       broker,
		service:      svc,
	}
}

func (f *testFixture) signup(t *testing.T) *identity.Identity {
	t.Helper()
	ident, err := f.service.Signup(context.Background(), testUserEmail, testUserPassword)
	require.NoError(t, err)
	return ident
}

func TestNewServiceValidation(t *testing.T) {
	f := setupTestFixture(t)

	_, err := session.NewService(session.Repos{}, f.issuer, nil, nil)
	require.Error(t, err)

	_, err = session.NewService(session.Repos{Identities: f.identityRepo, Activity: f.logRepo}, nil, nil, nil)
	require.Error(t, err)

	// A nil broker is allowed; SSO is optional.
	_, err = session.NewService(session.Repos{Identities: f.identityRepo, Activity: f.logRepo}, f.issuer, nil, nil)
	require.NoError(t, err)
}

func TestSignupAndLogin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	ident := f.signup(t)
	require.Equal(t, identity.RoleUser, ident.Role)
	require.Equal(t, identity.ProviderLocal, ident.Provider)
	require.NotEmpty(t, ident.ID)

	sess, pair, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, pair.AccessToken, sess.AccessToken)
	require.Equal(t, ident.ID, sess.Identity.ID)

	claims, err := f.service.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, ident.ID, claims.Subject)
	require.Equal(t, identity.RoleUser, claims.Role)
}

func TestSignupValidation(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Signup(ctx, "not-an-email", testUserPassword)
	require.ErrorIs(t, err, session.ErrInvalidInput)

	_, err = f.service.Signup(ctx, testUserEmail, "short")
	require.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)

	_, err := f.service.Signup(context.Background(), "John.Doe@Example.COM", "another-password")
	require.ErrorIs(t, err, session.ErrUserAlreadyExists)
}

func TestLoginInvalidCredentialsAreUniform(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t)

	// Wrong password on a known account.
	_, _, err := f.service.Login(ctx, testUserEmail, "wrong-password")
	require.ErrorIs(t, err, session.ErrInvalidCredentials)

	// Unknown account.
	_, _, unknownErr := f.service.Login(ctx, "nobody@example.com", testUserPassword)
	require.ErrorIs(t, unknownErr, session.ErrInvalidCredentials)

	// Same sentinel either way; the response does not reveal which field was wrong.
	require.Equal(t, err.Error(), unknownErr.Error())
}

func TestLoginSSOOnlyAccountHasNoPassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.identityRepo.UpsertByEmail(ctx, testUserEmail, identity.RoleUser, identity.ProviderKeycloak)
	require.NoError(t, err)

	_, _, err = f.service.Login(ctx, testUserEmail, testUserPassword)
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestLoginSurvivesLogStoreOutage(t *testing.T) {
	f := setupTestFixture(t)
	f.signup(t)
	f.logRepo.FailAppends = true

	_, pair, err := f.service.Login(context.Background(), testUserEmail, testUserPassword)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
}

func TestSSOLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.broker.ident = &identity.Identity{
		ID:       "sso-1",
		Email:    testUserEmail,
		Role:     identity.RoleAdmin,
		Provider: identity.ProviderKeycloak,
	}

	sess, pair, err := f.service.SSOLogin(context.Background(), "auth-code")
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "sso-1", sess.Identity.ID)

	claims, err := f.service.VerifyAccess(sess.AccessToken)
	require.NoError(t, err)
	require.Equal(t, identity.RoleAdmin, claims.Role)
}

func TestSSOLoginProviderRejection(t *testing.T) {
	f := setupTestFixture(t)
	f.broker.err = sso.ErrProviderRejected

	_, _, err := f.service.SSOLogin(context.Background(), "bad-code")
	require.ErrorIs(t, err, sso.ErrProviderRejected)
}

func TestSSOLoginWithoutBroker(t *testing.T) {
	f := setupTestFixture(t)
	svc, err := session.NewService(
		session.Repos{Identities: f.identityRepo, Activity: f.logRepo},
		f.issuer, nil, nil,
	)
	require.NoError(t, err)

	_, _, err = svc.SSOLogin(context.Background(), "auth-code")
	require.ErrorIs(t, err, sso.ErrProviderRejected)
}

func TestRefresh(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t)

	_, pair, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	sess, err := f.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.Equal(t, testUserEmail, sess.Identity.Email)

	claims, err := f.service.VerifyAccess(sess.AccessToken)
	require.NoError(t, err)
	require.Equal(t, sess.Identity.ID, claims.Subject)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t)

	_, pair, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, session.ErrSessionInvalid)
}

func TestRefreshUnknownSubject(t *testing.T) {
	f := setupTestFixture(t)

	// Mint a refresh token for a subject that the store never held.
	pair, err := f.issuer.Issue(&identity.Identity{ID: "ghost", Email: testUserEmail, Role: identity.RoleUser})
	require.NoError(t, err)

	_, err = f.service.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, session.ErrSessionInvalid)
}

func TestRefreshGarbageToken(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.Refresh(context.Background(), "garbage")
	require.ErrorIs(t, err, session.ErrSessionInvalid)
}

func TestLogoutRecordsActivity(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t)

	_, pair, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	f.service.Logout(ctx, pair.RefreshToken)

	entries := f.logRepo.Entries()
	require.Len(t, entries, 3) // signup, login, logout
	require.Equal(t, activity.ActionLogout, entries[2].Action)
	require.Equal(t, testUserEmail, entries[2].Email)
}

func TestLogoutBestEffort(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	// Neither an empty nor an unverifiable token produces an entry or error.
	f.service.Logout(ctx, "")
	f.service.Logout(ctx, "garbage")
	require.Empty(t, f.logRepo.Entries())
}

func TestUpdateRole(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	ident := f.signup(t)

	updated, err := f.service.UpdateRole(ctx, ident.ID, identity.RoleManager)
	require.NoError(t, err)
	require.Equal(t, identity.RoleManager, updated.Role)

	entries := f.logRepo.Entries()
	last := entries[len(entries)-1]
	require.Equal(t, activity.ActionRoleChange, last.Action)
	require.Contains(t, last.Details, "Manager")
}

func TestUpdateRoleInvalidValue(t *testing.T) {
	f := setupTestFixture(t)
	ident := f.signup(t)

	_, err := f.service.UpdateRole(context.Background(), ident.ID, identity.Role("Superuser"))
	require.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestUpdateRoleUnknownID(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.UpdateRole(context.Background(), "no-such-id", identity.RoleAdmin)
	require.ErrorIs(t, err, identity.ErrNotFound)
}

func TestLogsNewestFirstWithDefaultLimit(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.signup(t)

	_, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	entries, err := f.service.Logs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, activity.ActionLogin, entries[0].Action)
	require.Equal(t, activity.ActionSignup, entries[1].Action)
}

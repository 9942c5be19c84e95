package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/theavidstallion/quantrust/activity"
	"github.com/theavidstallion/quantrust/identity"
	"github.com/theavidstallion/quantrust/sso"
	"github.com/theavidstallion/quantrust/token"
)

// dummyHash is a bcrypt hash compared against when the email is unknown or
// the account has no local password, so both failure paths cost a hash
// comparison before returning the uniform ErrInvalidCredentials.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// defaultLogLimit caps the activity window returned when the caller does
// not ask for a specific size.
const defaultLogLimit = 100

// Session is the caller-visible result of a successful login or refresh:
// the access token plus the public identity fields. The refresh token is
// carried separately so the transport layer can keep it out of the
// response body.
type Session struct {
	AccessToken string
	Identity    *identity.Identity
}

// Broker is the SSO exchange contract the controller depends on.
type Broker interface {
	Exchange(ctx context.Context, code string) (*identity.Identity, error)
}

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Identities identity.Repo
	Activity   activity.Repo
}

// Service orchestrates login, signup, logout and refresh. It owns
// credential pairs only for the duration of a single call.
type Service struct {
	repos    Repos
	issuer   *token.Issuer
	broker   Broker
	recorder *activity.Recorder
	nowTime  func() time.Time
}

// ServiceOption modifies a Service.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService constructs the session lifecycle controller. The broker may be
// nil when federated login is not configured.
func NewService(repos Repos, issuer *token.Issuer, broker Broker, recorder *activity.Recorder, options ...ServiceOption) (*Service, error) {
	if repos.Identities == nil {
		return nil, errors.New("[NewService] identity repo is required")
	}
	if repos.Activity == nil {
		return nil, errors.New("[NewService] activity repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}

	svc := &Service{
		repos:    repos,
		issuer:   issuer,
		broker:   broker,
		recorder: recorder,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(svc)
	}
	return svc, nil
}

// Login verifies local credentials and mints a credential pair. Unknown
// email and wrong password both return ErrInvalidCredentials after a
// bcrypt comparison.
func (s *Service) Login(ctx context.Context, email, password string) (Session, token.Pair, error) {
	ident, err := s.repos.Identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			identity.CheckPasswordHash(password, dummyHash)
			return Session{}, token.Pair{}, ErrInvalidCredentials
		}
		return Session{}, token.Pair{}, errors.Wrap(err, "[Service.Login] FindByEmail")
	}

	if ident.PasswordHash == "" {
		// SSO-only account; no local password to match.
		identity.CheckPasswordHash(password, dummyHash)
		return Session{}, token.Pair{}, ErrInvalidCredentials
	}
	if !identity.CheckPasswordHash(password, ident.PasswordHash) {
		return Session{}, token.Pair{}, ErrInvalidCredentials
	}

	pair, err := s.issuer.Issue(ident)
	if err != nil {
		return Session{}, token.Pair{}, errors.Wrap(err, "[Service.Login] issue pair")
	}

	s.recorder.Record(ctx, activity.ActionLogin, ident.Email, "Local Login")
	return Session{AccessToken: pair.AccessToken, Identity: ident}, pair, nil
}

// Signup registers a local account with the default User role.
func (s *Service) Signup(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	email = identity.NormalizeEmail(email)
	if _, err := s.repos.Identities.FindByEmail(ctx, email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, identity.ErrNotFound) {
		return nil, errors.Wrap(err, "[Service.Signup] FindByEmail")
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Signup] hash password")
	}

	ident := &identity.Identity{
		Email:        email,
		PasswordHash: hash,
		Role:         identity.RoleUser,
		Provider:     identity.ProviderLocal,
		CreatedAt:    s.nowTime().UTC(),
	}
	if err := s.repos.Identities.Create(ctx, ident); err != nil {
		if errors.Is(err, identity.ErrAlreadyExists) {
			// Lost a create race; same outward answer as the lookup path.
			return nil, ErrUserAlreadyExists
		}
		return nil, errors.Wrap(err, "[Service.Signup] Create")
	}

	s.recorder.Record(ctx, activity.ActionSignup, ident.Email, "Local Registration")
	return ident, nil
}

// SSOLogin exchanges the authorization code through the broker and mints a
// credential pair scoped to the reconciled local identity.
func (s *Service) SSOLogin(ctx context.Context, code string) (Session, token.Pair, error) {
	if s.broker == nil {
		return Session{}, token.Pair{}, errors.Wrap(sso.ErrProviderRejected, "[Service.SSOLogin] no identity provider configured")
	}

	ident, err := s.broker.Exchange(ctx, code)
	if err != nil {
		return Session{}, token.Pair{}, err
	}

	pair, err := s.issuer.Issue(ident)
	if err != nil {
		return Session{}, token.Pair{}, errors.Wrap(err, "[Service.SSOLogin] issue pair")
	}

	s.recorder.Record(ctx, activity.ActionLogin, ident.Email, "Keycloak SSO")
	return Session{AccessToken: pair.AccessToken, Identity: ident}, pair, nil
}

// Logout records the event when the presented refresh token still resolves
// to a known identity. The credential itself is cleared by the transport
// layer; there is no server-side revocation set.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return
	}
	ident, err := s.repos.Identities.FindByID(ctx, claims.Subject)
	if err != nil {
		return
	}
	s.recorder.Record(ctx, activity.ActionLogout, ident.Email, "Session Closed")
}

// VerifyAccess verifies a bearer access token via the credential issuer.
// It carries the issuer's error taxonomy through unchanged.
func (s *Service) VerifyAccess(raw string) (*token.AccessClaims, error) {
	return s.issuer.VerifyAccess(raw)
}

// Refresh verifies the refresh credential, re-resolves the identity (the
// subject must still exist) and mints a fresh access token only. The
// refresh token is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return Session{}, ErrSessionInvalid
	}

	ident, err := s.repos.Identities.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return Session{}, ErrSessionInvalid
		}
		return Session{}, errors.Wrap(err, "[Service.Refresh] FindByID")
	}

	access, err := s.issuer.IssueAccess(ident)
	if err != nil {
		return Session{}, errors.Wrap(err, "[Service.Refresh] issue access token")
	}
	return Session{AccessToken: access, Identity: ident}, nil
}

// Identities lists all accounts with their public fields.
func (s *Service) Identities(ctx context.Context) ([]*identity.Identity, error) {
	list, err := s.repos.Identities.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Identities] List")
	}
	return list, nil
}

// UpdateRole sets an account's role after validating the value.
func (s *Service) UpdateRole(ctx context.Context, id string, role identity.Role) (*identity.Identity, error) {
	if !role.Valid() {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid role %q", role)
	}
	if err := s.repos.Identities.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	ident, err := s.repos.Identities.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.UpdateRole] FindByID")
	}
	s.recorder.Record(ctx, activity.ActionRoleChange, ident.Email, "Role set to "+string(role))
	return ident, nil
}

// Logs returns recent activity entries, newest first. A non-positive limit
// falls back to the default window.
func (s *Service) Logs(ctx context.Context, limit int) ([]*activity.Entry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	entries, err := s.repos.Activity.List(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Logs] List")
	}
	return entries, nil
}

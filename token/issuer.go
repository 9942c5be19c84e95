package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/theavidstallion/quantrust/identity"
)

// Kind distinguishes the two halves of a credential pair.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Pair is a freshly minted access/refresh credential pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// AccessClaims is the verified claim set of an access token. Role and
// Email ride in the token so the authorization gates never touch storage
// on the hot path.
type AccessClaims struct {
	Email string        `json:"email"`
	Role  identity.Role `json:"role"`
	Kind  Kind          `json:"kind"`
	jwtlib.RegisteredClaims
}

// RefreshClaims is the verified claim set of a refresh token. It carries
// only the subject; the refresh path re-resolves the identity.
type RefreshClaims struct {
	Kind Kind `json:"kind"`
	jwtlib.RegisteredClaims
}

// Issuer mints and verifies credential pairs with an HS256 shared secret.
// The secret and both lifetimes are injected at construction and never read
// from ambient state.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowTime    func() time.Time
}

// IssuerOption modifies an Issuer.
type IssuerOption func(*Issuer)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

// NewIssuer constructs an Issuer. The secret is required; the short access
// lifetime bounds the blast radius of a leaked bearer token while the long
// refresh lifetime keeps re-authentication friction low.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration, options ...IssuerOption) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("[NewIssuer] signing secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("[NewIssuer] token lifetimes must be positive")
	}

	issuer := &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(issuer)
	}
	return issuer, nil
}

// Issue mints a credential pair for the identity. Signing is the only side
// effect.
func (i *Issuer) Issue(ident *identity.Identity) (Pair, error) {
	access, err := i.IssueAccess(ident)
	if err != nil {
		return Pair{}, err
	}

	now := i.nowTime()
	refreshClaims := RefreshClaims{
		Kind: KindRefresh,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   ident.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.refreshTTL)),
			ID:        uuid.New().String(),
		},
	}
	refresh, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, refreshClaims).SignedString(i.secret)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueAccess mints only the short-lived access token; the refresh path
// uses it since refresh tokens are not rotated.
func (i *Issuer) IssueAccess(ident *identity.Identity) (string, error) {
	now := i.nowTime()
	claims := AccessClaims{
		Email: ident.Email,
		Role:  ident.Role,
		Kind:  KindAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   ident.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.accessTTL)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccess checks signature, expiry and shape of an access token and
// returns its claims. It does not re-check that the subject still exists;
// callers needing freshness must re-resolve the identity.
func (i *Issuer) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Kind != KindAccess {
		return nil, ErrWrongKind
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrMalformed
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry and shape of a refresh token.
func (i *Issuer) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Kind != KindRefresh {
		return nil, ErrWrongKind
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (i *Issuer) parse(raw string, claims jwtlib.Claims) error {
	parsed, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return i.secret, nil
	}, jwtlib.WithTimeFunc(i.nowTime))

	switch {
	case err == nil && parsed.Valid:
		return nil
	case errors.Is(err, jwtlib.ErrTokenExpired):
		// Expiry is checked after the signature, so an expired token is
		// reported as expired, never malformed.
		return ErrExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSignature):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}

package token

import "errors"

var (
	// ErrExpired means the token was well-formed and correctly signed but is
	// past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalidSignature means the signature did not verify against the
	// configured secret.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrMalformed means the token could not be parsed or its claims have
	// the wrong shape.
	ErrMalformed = errors.New("token malformed")
	// ErrWrongKind means a valid token of the other kind was presented,
	// e.g. a refresh token offered where an access token is required.
	ErrWrongKind = errors.New("token kind mismatch")
)

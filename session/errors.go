package session

import "errors"

var (
	// ErrInvalidCredentials is returned uniformly for unknown emails and
	// wrong passwords so the two cases are indistinguishable to a caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists means the signup email is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrSessionInvalid means the refresh credential failed verification or
	// its subject no longer exists.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrInvalidInput means a request field failed shape validation.
	ErrInvalidInput = errors.New("invalid input")
)

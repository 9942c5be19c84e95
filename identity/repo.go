package identity

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("identity not found")
	ErrAlreadyExists      = errors.New("identity already exists")
	ErrStorageUnavailable = errors.New("identity storage unavailable")
)

// Repo is the persistence contract for identities. Implementations must
// enforce email uniqueness and resolve UpsertByEmail atomically so two
// concurrent first logins for the same email cannot create two accounts.
type Repo interface {
	Create(ctx context.Context, ident *Identity) error
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)

	// UpsertByEmail reconciles a federated login. An existing identity keeps
	// its local role and gains the given provider; a missing identity is
	// created with the candidate role. Returns the stored identity.
	UpsertByEmail(ctx context.Context, email string, candidate Role, provider Provider) (*Identity, error)

	UpdateRole(ctx context.Context, id string, role Role) error
	List(ctx context.Context) ([]*Identity, error)
}

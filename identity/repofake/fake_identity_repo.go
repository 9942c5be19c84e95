package fakeidentityrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/theavidstallion/quantrust/identity"
	"github.com/theavidstallion/quantrust/internal/ids"
)

var _ identity.Repo = (*FakeIdentityRepo)(nil)

// FakeIdentityRepo is an in-memory identity.Repo for tests and DB-less runs.
type FakeIdentityRepo struct {
	identities map[string]*identity.Identity
	emailIds   map[string]string // email to identity id
	lock       sync.RWMutex
}

func NewFakeIdentityRepo() *FakeIdentityRepo {
	return &FakeIdentityRepo{
		identities: make(map[string]*identity.Identity),
		emailIds:   make(map[string]string),
	}
}

func (ir *FakeIdentityRepo) Create(_ context.Context, ident *identity.Identity) error {
	ir.lock.Lock()
	defer ir.lock.Unlock()

	email := identity.NormalizeEmail(ident.Email)
	if _, ok := ir.emailIds[email]; ok {
		return identity.ErrAlreadyExists
	}
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now().UTC()
	}
	ident.Email = email
	ir.identities[ident.ID] = ident
	ir.emailIds[email] = ident.ID
	return nil
}

func (ir *FakeIdentityRepo) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	ir.lock.RLock()
	defer ir.lock.RUnlock()

	id, ok := ir.emailIds[identity.NormalizeEmail(email)]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return copyIdentity(ir.identities[id]), nil
}

func (ir *FakeIdentityRepo) FindByID(_ context.Context, id string) (*identity.Identity, error) {
	ir.lock.RLock()
	defer ir.lock.RUnlock()

	ident, ok := ir.identities[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return copyIdentity(ident), nil
}

func (ir *FakeIdentityRepo) UpsertByEmail(_ context.Context, email string, candidate identity.Role, provider identity.Provider) (*identity.Identity, error) {
	ir.lock.Lock()
	defer ir.lock.Unlock()

	email = identity.NormalizeEmail(email)
	if id, ok := ir.emailIds[email]; ok {
		// Existing account: provider flips, local role stays authoritative.
		ident := ir.identities[id]
		ident.Provider = provider
		return copyIdentity(ident), nil
	}

	ident := &identity.Identity{
		ID:        ids.New(),
		Email:     email,
		Role:      candidate,
		Provider:  provider,
		CreatedAt: time.Now().UTC(),
	}
	ir.identities[ident.ID] = ident
	ir.emailIds[email] = ident.ID
	return copyIdentity(ident), nil
}

func (ir *FakeIdentityRepo) UpdateRole(_ context.Context, id string, role identity.Role) error {
	ir.lock.Lock()
	defer ir.lock.Unlock()

	ident, ok := ir.identities[id]
	if !ok {
		return identity.ErrNotFound
	}
	ident.Role = role
	return nil
}

func (ir *FakeIdentityRepo) List(_ context.Context) ([]*identity.Identity, error) {
	ir.lock.RLock()
	defer ir.lock.RUnlock()

	list := make([]*identity.Identity, 0, len(ir.identities))
	for _, ident := range ir.identities {
		list = append(list, copyIdentity(ident))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func copyIdentity(ident *identity.Identity) *identity.Identity {
	clone := *ident
	return &clone
}

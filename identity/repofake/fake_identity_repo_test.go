package fakeidentityrepo_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theavidstallion/quantrust/identity"
	fakeidentityrepo "github.com/theavidstallion/quantrust/identity/repofake"
)

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	ctx := context.Background()

	err := repo.Create(ctx, &identity.Identity{Email: "john.doe@example.com", Role: identity.RoleUser, Provider: identity.ProviderLocal})
	require.NoError(t, err)

	err = repo.Create(ctx, &identity.Identity{Email: "John.Doe@Example.com", Role: identity.RoleUser, Provider: identity.ProviderLocal})
	require.ErrorIs(t, err, identity.ErrAlreadyExists)
}

func TestUpsertKeepsLocalRole(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	ctx := context.Background()

	err := repo.Create(ctx, &identity.Identity{Email: "admin@example.com", Role: identity.RoleAdmin, Provider: identity.ProviderLocal})
	require.NoError(t, err)

	ident, err := repo.UpsertByEmail(ctx, "admin@example.com", identity.RoleUser, identity.ProviderKeycloak)
	require.NoError(t, err)
	require.Equal(t, identity.RoleAdmin, ident.Role)
	require.Equal(t, identity.ProviderKeycloak, ident.Provider)
}

func TestUpsertCreatesWithCandidateRole(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	ctx := context.Background()

	ident, err := repo.UpsertByEmail(ctx, "new@example.com", identity.RoleAdmin, identity.ProviderKeycloak)
	require.NoError(t, err)
	require.Equal(t, identity.RoleAdmin, ident.Role)
	require.NotEmpty(t, ident.ID)
}

func TestUpsertConcurrentFirstLogin(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	ctx := context.Background()

	const workers = 32
	idSet := make([]string, workers)
	errSet := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ident, err := repo.UpsertByEmail(ctx, "racer@example.com", identity.RoleUser, identity.ProviderKeycloak)
			errSet[n] = err
			if err == nil {
				idSet[n] = ident.ID
			}
		}(i)
	}
	wg.Wait()

	for n := 0; n < workers; n++ {
		require.NoError(t, errSet[n])
		require.Equal(t, idSet[0], idSet[n])
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestFindReturnsCopies(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	ctx := context.Background()

	err := repo.Create(ctx, &identity.Identity{Email: "copy@example.com", Role: identity.RoleUser, Provider: identity.ProviderLocal})
	require.NoError(t, err)

	ident, err := repo.FindByEmail(ctx, "copy@example.com")
	require.NoError(t, err)
	ident.Role = identity.RoleAdmin

	again, err := repo.FindByEmail(ctx, "copy@example.com")
	require.NoError(t, err)
	require.Equal(t, identity.RoleUser, again.Role)
}

func TestUpdateRoleUnknownID(t *testing.T) {
	repo := fakeidentityrepo.NewFakeIdentityRepo()
	err := repo.UpdateRole(context.Background(), "no-such-id", identity.RoleAdmin)
	require.ErrorIs(t, err, identity.ErrNotFound)
}

package fakeuserrepo_test

import (
	"testing"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/cagkantasci/smartop/users"
	fakeuserrepo "github.com/cagkantasci/smartop/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	hash, err := users.HashPassword("pw", 4)
	require.NoError(t, err)
	account := &users.Account{User: users.User{Email: "Op@Fleet.test", Role: users.RoleOperator}, PasswordHash: hash}
	require.NoError(t, repo.Upsert(account))
	require.NotEmpty(t, account.User.ID)
	require.NoError(t, repo.Upsert(&users.Account{User: users.User{Email: "admin@fleet.test", Role: users.RoleAdmin}}))

	got, err := repo.GetByEmail(" op@fleet.test ")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("pw", got.PasswordHash))
	require.False(t, users.CheckPasswordHash("nope", got.PasswordHash))

	got.User.FirstName = "mutated"
	again, err := repo.GetByID(account.User.ID)
	require.NoError(t, err)
	require.Empty(t, again.User.FirstName)

	require.NoError(t, repo.SetBiometric(account.User.ID, true))
	again, err = repo.GetByID(account.User.ID)
	require.NoError(t, err)
	require.True(t, again.User.BiometricEnabled)

	all, err := repo.List(0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	page, err := repo.List(1, 5)
	require.NoError(t, err)
	require.Len(t, page, 1)
	empty, err := repo.List(2, 5)
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = repo.GetByEmail("missing@fleet.test")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.ErrorIs(t, repo.SetBiometric("missing", true), apperrors.ErrNotFound)
	require.ErrorIs(t, repo.Upsert(&users.Account{}), apperrors.ErrInvalidInput)
}

package users_test

import (
	"testing"

	"github.com/cagkantasci/smartop/internal/utils"
	"github.com/cagkantasci/smartop/users"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	u := users.User{
		ID:             "user-1",
		Email:          "ayse@example.com",
		FirstName:      "Ayse",
		LastName:       "Yilmaz",
		Role:           users.RoleOperator,
		OrganizationID: "org-1",
	}

	patched := u.Apply(users.Patch{
		LastName:         utils.Ptr("Kaya"),
		Phone:            utils.Ptr("+90 555 000 0000"),
		BiometricEnabled: utils.Ptr(true),
	})

	require.Equal(t, "Ayse", patched.FirstName)
	require.Equal(t, "Kaya", patched.LastName)
	require.Equal(t, "+90 555 000 0000", patched.Phone)
	require.True(t, patched.BiometricEnabled)
	require.Equal(t, "user-1", patched.ID)
	require.Equal(t, "org-1", patched.OrganizationID)

	// Original is untouched.
	require.Equal(t, "Yilmaz", u.LastName)
}

func TestApply_IgnoresUnknownRole(t *testing.T) {
	u := users.User{Role: users.RoleOperator}
	require.Equal(t, users.RoleOperator, u.Apply(users.Patch{Role: utils.Ptr(users.RoleType("owner"))}).Role)
	require.Equal(t, users.RoleManager, u.Apply(users.Patch{Role: utils.Ptr(users.RoleManager)}).Role)
}

func TestRoles(t *testing.T) {
	admin := users.User{Role: users.RoleAdmin, FirstName: "Ali", LastName: "Demir"}
	operator := users.User{Role: users.RoleOperator, FirstName: "Veli"}

	require.True(t, admin.CanApprove())
	require.False(t, operator.CanApprove())
	require.Equal(t, "Ali Demir", admin.FullName())
	require.Equal(t, "Veli", operator.FullName())
}

package biometric_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cagkantasci/smartop/biometric"
	"github.com/cagkantasci/smartop/biometric/authfake"
	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/cagkantasci/smartop/securestore"
	"github.com/cagkantasci/smartop/securestore/storefake"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	lock  sync.Mutex
	calls []bool
	err   error
}

func (n *fakeNotifier) SetBiometric(_ context.Context, enabled bool) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.calls = append(n.calls, enabled)
	return n.err
}

type vaultFixture struct {
	auth     *authfake.FakeAuthenticator
	store    *storefake.FakeStore
	notifier *fakeNotifier
	vault    *biometric.Vault
}

func setupVault(t *testing.T) *vaultFixture {
	t.Helper()
	auth := authfake.NewFakeAuthenticator()
	store := storefake.NewFakeStore()
	notifier := &fakeNotifier{}
	return &vaultFixture{
		auth:     auth,
		store:    store,
		notifier: notifier,
		vault:    biometric.NewVault(auth, store, notifier),
	}
}

func TestCheckAvailability(t *testing.T) {
	f := setupVault(t)
	ctx := context.Background()

	f.auth.SetHardware(true, biometric.TypeFingerprint, biometric.TypeFacial)
	a, err := f.vault.CheckAvailability(ctx)
	require.NoError(t, err)
	require.Equal(t, biometric.Availability{HardwareAvailable: true, Enrolled: true, Type: biometric.TypeFacial}, a)
	require.True(t, a.Usable())

	f.auth.SetHardware(true)
	a, err = f.vault.CheckAvailability(ctx)
	require.NoError(t, err)
	require.False(t, a.Enrolled)
	require.Equal(t, biometric.TypeNone, a.Type)
	require.False(t, a.Usable())

	f.auth.SetHardware(false, biometric.TypeFingerprint)
	a, err = f.vault.CheckAvailability(ctx)
	require.NoError(t, err)
	require.False(t, a.Usable())
	require.Empty(t, f.auth.Prompts())
}

func TestEnableBiometric_StoresCredentialAfterChallenge(t *testing.T) {
	f := setupVault(t)
	ctx := context.Background()

	require.NoError(t, f.vault.EnableBiometric(ctx, " op@fleet.test ", "s3cret"))

	snap := f.store.Snapshot()
	require.Equal(t, "true", snap[securestore.KeyBiometricEnabled])
	require.Equal(t, "op@fleet.test", snap[securestore.KeyBiometricEmail])
	require.Equal(t, "s3cret", snap[securestore.KeyBiometricCredential])
	require.Equal(t, []string{biometric.PromptEnable}, f.auth.Prompts())
	require.Equal(t, []bool{true}, f.notifier.calls)

	a, err := f.vault.CheckAvailability(ctx)
	require.NoError(t, err)
	require.True(t, a.Enabled)
}

func TestEnableBiometric_FailedChallengeWritesNothing(t *testing.T) {
	tests := []struct {
		name   string
		result error
		target error
	}{
		{"failed", apperrors.ErrBiometricFailed, apperrors.ErrBiometricFailed},
		{"cancelled", apperrors.ErrBiometricCancelled, apperrors.ErrBiometricCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupVault(t)
			f.auth.SetResult(tt.result)

			err := f.vault.EnableBiometric(context.Background(), "op@fleet.test", "s3cret")
			require.ErrorIs(t, err, tt.target)
			require.ErrorIs(t, err, apperrors.ErrBiometricFailed)
			require.Empty(t, f.store.Snapshot())
			require.Empty(t, f.notifier.calls)
		})
	}
}

func TestEnableBiometric_Unavailable(t *testing.T) {
	f := setupVault(t)
	f.auth.SetHardware(false)

	err := f.vault.EnableBiometric(context.Background(), "op@fleet.test", "s3cret")
	require.ErrorIs(t, err, apperrors.ErrBiometricUnavail)
	require.Empty(t, f.auth.Prompts())
	require.Empty(t, f.store.Snapshot())
}

func TestEnableBiometric_RejectsEmptyCredential(t *testing.T) {
	f := setupVault(t)
	err := f.vault.EnableBiometric(context.Background(), "  ", "pw")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	err = f.vault.EnableBiometric(context.Background(), "op@fleet.test", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEnableBiometric_StorageFailureLeavesDisabled(t *testing.T) {
	f := setupVault(t)
	f.store.FailOn(storefake.OpSet, securestore.KeyBiometricCredential, errors.New("keychain locked"))

	err := f.vault.EnableBiometric(context.Background(), "op@fleet.test", "s3cret")
	require.Error(t, err)

	enabled, err := f.vault.IsEnabled(context.Background())
	require.NoError(t, err)
	require.False(t, enabled)
	require.False(t, f.store.Has(securestore.KeyBiometricEmail))
}

func TestEnableBiometric_BackendFailureIsIgnored(t *testing.T) {
	f := setupVault(t)
	f.notifier.err = errors.New("503")

	require.NoError(t, f.vault.EnableBiometric(context.Background(), "op@fleet.test", "s3cret"))
	enabled, err := f.vault.IsEnabled(context.Background())
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestBiometricLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("releases credential after challenge", func(t *testing.T) {
		f := setupVault(t)
		require.NoError(t, f.vault.EnableBiometric(ctx, "op@fleet.test", "s3cret"))

		res, err := f.vault.BiometricLogin(ctx)
		require.NoError(t, err)
		require.Equal(t, biometric.LoginResult{OK: true, Email: "op@fleet.test", Password: "s3cret"}, res)
		require.Equal(t, []string{biometric.PromptEnable, biometric.PromptLogin}, f.auth.Prompts())
	})

	t.Run("not enabled skips the challenge", func(t *testing.T) {
		f := setupVault(t)

		res, err := f.vault.BiometricLogin(ctx)
		require.NoError(t, err)
		require.Equal(t, biometric.ReasonNotEnabled, res.Reason)
		require.False(t, res.OK)
		require.Empty(t, f.auth.Prompts())
	})

	t.Run("failed challenge releases nothing", func(t *testing.T) {
		f := setupVault(t)
		require.NoError(t, f.vault.EnableBiometric(ctx, "op@fleet.test", "s3cret"))
		f.auth.SetResult(apperrors.ErrBiometricCancelled)

		res, err := f.vault.BiometricLogin(ctx)
		require.NoError(t, err)
		require.False(t, res.OK)
		require.Equal(t, biometric.ReasonChallengeFailed, res.Reason)
		require.ErrorIs(t, res.Cause, apperrors.ErrBiometricCancelled)
		require.Empty(t, res.Email)
		require.Empty(t, res.Password)
	})

	t.Run("hardware gone", func(t *testing.T) {
		f := setupVault(t)
		require.NoError(t, f.vault.EnableBiometric(ctx, "op@fleet.test", "s3cret"))
		f.auth.SetHardware(false)

		res, err := f.vault.BiometricLogin(ctx)
		require.NoError(t, err)
		require.Equal(t, biometric.ReasonUnavailable, res.Reason)
	})

	t.Run("credential missing", func(t *testing.T) {
		f := setupVault(t)
		require.NoError(t, f.store.Set(ctx, securestore.KeyBiometricEnabled, "true"))

		res, err := f.vault.BiometricLogin(ctx)
		require.NoError(t, err)
		require.Equal(t, biometric.ReasonCredentialMissing, res.Reason)
	})
}

func TestDisableBiometric_ErasesLocallyEvenWhenBackendFails(t *testing.T) {
	f := setupVault(t)
	ctx := context.Background()
	require.NoError(t, f.vault.EnableBiometric(ctx, "op@fleet.test", "s3cret"))
	f.notifier.err = errors.New("offline")

	require.NoError(t, f.vault.DisableBiometric(ctx))

	snap := f.store.Snapshot()
	require.Equal(t, "false", snap[securestore.KeyBiometricEnabled])
	require.NotContains(t, snap, securestore.KeyBiometricEmail)
	require.NotContains(t, snap, securestore.KeyBiometricCredential)
	require.Equal(t, []bool{true, false}, f.notifier.calls)

	res, err := f.vault.BiometricLogin(ctx)
	require.NoError(t, err)
	require.Equal(t, biometric.ReasonNotEnabled, res.Reason)
}

// Package biometric gates a cached email/password pair behind the device's
// biometric challenge. The vault only stores and releases the credential; it
// never talks to the login endpoint itself.
package biometric

import (
	"context"
	"strings"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/cagkantasci/smartop/securestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	enableTrue  = "true"
	enableFalse = "false"

	PromptEnable = "Confirm to enable biometric login"
	PromptLogin  = "Log in to Smartop"
)

// Availability describes what the device can do and whether this app uses it.
type Availability struct {
	HardwareAvailable bool
	Enrolled          bool
	Type              BiometryType
	Enabled           bool
}

// Usable reports whether a biometric challenge can be run at all.
func (a Availability) Usable() bool {
	return a.HardwareAvailable && a.Enrolled
}

// Reason explains why a biometric login produced no credential.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotEnabled        Reason = "not_enabled"
	ReasonUnavailable       Reason = "unavailable"
	ReasonChallengeFailed   Reason = "challenge_failed"
	ReasonCredentialMissing Reason = "credential_missing"
)

// LoginResult is the outcome of BiometricLogin. When OK is false, Reason says
// why and the caller falls back to manual password entry.
type LoginResult struct {
	OK       bool
	Reason   Reason
	Email    string
	Password string
	Cause    error // challenge error when Reason is ReasonChallengeFailed
}

// BackendNotifier mirrors the enablement flag to the server.
type BackendNotifier interface {
	SetBiometric(ctx context.Context, enabled bool) error
}

// Vault is the biometric-gated credential store.
type Vault struct {
	auth  Authenticator
	store securestore.Store
	api   BackendNotifier
	log   zerolog.Logger
}

type VaultOption func(*Vault)

func WithVaultLogger(l zerolog.Logger) VaultOption {
	return func(v *Vault) {
		v.log = l
	}
}

func NewVault(auth Authenticator, store securestore.Store, api BackendNotifier, options ...VaultOption) *Vault {
	v := &Vault{
		auth:  auth,
		store: store,
		api:   api,
		log:   log.Logger.With().Str("component", "biometric").Logger(),
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// CheckAvailability is a pure read of device capability and app enablement.
func (v *Vault) CheckAvailability(ctx context.Context) (Availability, error) {
	hardware, err := v.auth.HardwareAvailable(ctx)
	if err != nil {
		return Availability{}, errors.Wrap(err, "Vault.CheckAvailability HardwareAvailable")
	}

	var types []BiometryType
	if hardware {
		types, err = v.auth.EnrolledTypes(ctx)
		if err != nil {
			return Availability{}, errors.Wrap(err, "Vault.CheckAvailability EnrolledTypes")
		}
	}

	enabled, err := v.IsEnabled(ctx)
	if err != nil {
		return Availability{}, err
	}

	bioType := preferredType(types)
	return Availability{
		HardwareAvailable: hardware,
		Enrolled:          bioType != TypeNone,
		Type:              bioType,
		Enabled:           enabled,
	}, nil
}

// IsEnabled reports the persisted enablement flag.
func (v *Vault) IsEnabled(ctx context.Context) (bool, error) {
	flag, _, err := v.store.Get(ctx, securestore.KeyBiometricEnabled)
	if err != nil {
		return false, errors.Wrap(err, "Vault.IsEnabled")
	}
	return flag == enableTrue, nil
}

// EnableBiometric caches the credential after a fresh, successful biometric
// challenge. Nothing is written if the challenge fails or is cancelled.
func (v *Vault) EnableBiometric(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errors.Wrap(apperrors.ErrInvalidInput, "Vault.EnableBiometric email and password are required")
	}

	availability, err := v.CheckAvailability(ctx)
	if err != nil {
		return err
	}
	if !availability.Usable() {
		return errors.Wrap(apperrors.ErrBiometricUnavail, "Vault.EnableBiometric")
	}

	if err := v.auth.Authenticate(ctx, PromptEnable); err != nil {
		return apperrors.Wrapf(apperrors.Join(apperrors.ErrBiometricFailed, err), "Vault.EnableBiometric")
	}

	// The flag goes last so a partial write never reads as enabled.
	writes := []struct{ key, value string }{
		{securestore.KeyBiometricEmail, email},
		{securestore.KeyBiometricCredential, password},
		{securestore.KeyBiometricEnabled, enableTrue},
	}
	for _, w := range writes {
		if err := v.store.Set(ctx, w.key, w.value); err != nil {
			_ = v.erase(ctx)
			return errors.Wrapf(err, "Vault.EnableBiometric store %s", w.key)
		}
	}

	if err := v.api.SetBiometric(ctx, true); err != nil {
		v.log.Warn().Err(err).Msg("failed to report biometric enablement to server")
	}
	v.log.Info().Str("type", string(availability.Type)).Msg("biometric login enabled")
	return nil
}

// BiometricLogin runs the challenge and, only if it passes, releases the
// cached credential. Missing enablement or credential is a Reason, not an
// error; errors are reserved for storage failures.
func (v *Vault) BiometricLogin(ctx context.Context) (LoginResult, error) {
	enabled, err := v.IsEnabled(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	if !enabled {
		return LoginResult{Reason: ReasonNotEnabled}, nil
	}

	availability, err := v.CheckAvailability(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	if !availability.Usable() {
		return LoginResult{Reason: ReasonUnavailable}, nil
	}

	if err := v.auth.Authenticate(ctx, PromptLogin); err != nil {
		v.log.Debug().Err(err).Msg("biometric challenge not passed")
		return LoginResult{Reason: ReasonChallengeFailed, Cause: err}, nil
	}

	email, emailOK, err := v.store.Get(ctx, securestore.KeyBiometricEmail)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "Vault.BiometricLogin email")
	}
	password, passwordOK, err := v.store.Get(ctx, securestore.KeyBiometricCredential)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "Vault.BiometricLogin credential")
	}
	if !emailOK || !passwordOK || email == "" || password == "" {
		return LoginResult{Reason: ReasonCredentialMissing}, nil
	}

	return LoginResult{OK: true, Email: email, Password: password}, nil
}

// DisableBiometric erases the cached credential locally first, then tells the
// server. A server failure never prevents the local erasure.
func (v *Vault) DisableBiometric(ctx context.Context) error {
	localErr := v.erase(ctx)

	if err := v.api.SetBiometric(ctx, false); err != nil {
		v.log.Warn().Err(err).Msg("failed to report biometric disablement to server")
	}

	if localErr != nil {
		return errors.Wrap(localErr, "Vault.DisableBiometric")
	}
	v.log.Info().Msg("biometric login disabled")
	return nil
}

func (v *Vault) erase(ctx context.Context) error {
	return apperrors.Join(
		v.store.Delete(ctx, securestore.KeyBiometricCredential),
		v.store.Delete(ctx, securestore.KeyBiometricEmail),
		v.store.Set(ctx, securestore.KeyBiometricEnabled, enableFalse),
	)
}

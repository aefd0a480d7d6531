package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the session & device-identity client
var (
	// Session errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrRefreshFailed   = errors.New("token refresh failed")
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrSessionChanged  = errors.New("session changed during refresh")

	// Transport errors
	ErrNetwork = errors.New("network failure")

	// Device errors
	ErrBiometricFailed    = errors.New("biometric challenge failed")
	ErrBiometricCancelled = errors.New("biometric challenge cancelled")
	ErrBiometricUnavail   = errors.New("biometrics unavailable")
	ErrRegistrationFailed = errors.New("device registration failed")
	ErrPushUnsupported    = errors.New("push notifications unsupported on this device")

	// Storage errors
	ErrCorrupt = errors.New("stored value is corrupt")

	// General errors
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}

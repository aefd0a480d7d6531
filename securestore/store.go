// Package securestore is the secure key-value primitive the session client
// persists credentials in. Values are opaque strings; there is no schema
// versioning, so a format change requires clearing the store.
package securestore

import "context"

// Well-known keys
const (
	KeyAccessToken         = "access_token"
	KeyRefreshToken        = "refresh_token"
	KeyBiometricEnabled    = "biometric_enabled"
	KeyBiometricEmail      = "biometric_email"
	KeyBiometricCredential = "biometric_credential"
	KeyPushToken           = "push_token"
)

// Store is a secure, persisted key-value store.
// A missing key is reported with ok=false and is never an error; only storage
// I/O failures are returned as errors. Deleting a missing key is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

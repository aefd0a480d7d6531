package biometric

import "context"

// BiometryType is the kind of biometric enrolled on the device.
type BiometryType string

const (
	TypeFacial      BiometryType = "facial"
	TypeFingerprint BiometryType = "fingerprint"
	TypeIris        BiometryType = "iris"
	TypeNone        BiometryType = "none"
)

// typePreference orders enrolled types when the device has more than one.
var typePreference = []BiometryType{TypeFacial, TypeFingerprint, TypeIris}

// Authenticator is the platform biometric API.
type Authenticator interface {
	HardwareAvailable(ctx context.Context) (bool, error)
	EnrolledTypes(ctx context.Context) ([]BiometryType, error)
	// Authenticate runs a biometric challenge and returns nil only when the
	// user passed it. Cancellation is reported as errors.ErrBiometricCancelled.
	Authenticate(ctx context.Context, prompt string) error
}

func preferredType(enrolled []BiometryType) BiometryType {
	for _, want := range typePreference {
		for _, got := range enrolled {
			if got == want {
				return want
			}
		}
	}
	return TypeNone
}

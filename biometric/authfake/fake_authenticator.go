package authfake

import (
	"context"
	"sync"

	"github.com/cagkantasci/smartop/biometric"
)

var _ biometric.Authenticator = (*FakeAuthenticator)(nil)

// FakeAuthenticator simulates the platform biometric API.
type FakeAuthenticator struct {
	lock     sync.Mutex
	hardware bool
	enrolled []biometric.BiometryType
	result   error
	prompts  []string
}

// NewFakeAuthenticator returns a device with fingerprint hardware enrolled and
// challenges that succeed.
func NewFakeAuthenticator() *FakeAuthenticator {
	return &FakeAuthenticator{
		hardware: true,
		enrolled: []biometric.BiometryType{biometric.TypeFingerprint},
	}
}

func (a *FakeAuthenticator) SetHardware(available bool, enrolled ...biometric.BiometryType) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.hardware = available
	a.enrolled = enrolled
}

// SetResult makes subsequent challenges return err (nil = pass).
func (a *FakeAuthenticator) SetResult(err error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.result = err
}

func (a *FakeAuthenticator) Prompts() []string {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]string(nil), a.prompts...)
}

func (a *FakeAuthenticator) HardwareAvailable(context.Context) (bool, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.hardware, nil
}

func (a *FakeAuthenticator) EnrolledTypes(context.Context) ([]biometric.BiometryType, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]biometric.BiometryType(nil), a.enrolled...), nil
}

func (a *FakeAuthenticator) Authenticate(_ context.Context, prompt string) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.prompts = append(a.prompts, prompt)
	return a.result
}

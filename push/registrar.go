// Package push keeps the device's push-notification registration in sync with
// the session and fans received notifications out to subscribers.
package push

import (
	"context"
	"sync"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/cagkantasci/smartop/securestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DeviceAPI is the backend side of device registration.
type DeviceAPI interface {
	RegisterDevice(ctx context.Context, pushToken, platform string) error
	UnregisterDevice(ctx context.Context, pushToken string) error
}

// DeviceRegistration is the current registration state. ServerRegistered is
// process memory only; it is rebuilt by registering again, which is idempotent.
type DeviceRegistration struct {
	PushToken        string
	Platform         Platform
	ServerRegistered bool
}

// Registrar obtains, caches and (un)registers the device push token.
type Registrar struct {
	provider Provider
	store    securestore.Store
	api      DeviceAPI
	log      zerolog.Logger

	lock       sync.Mutex
	token      string
	registered bool
}

type RegistrarOption func(*Registrar)

func WithRegistrarLogger(l zerolog.Logger) RegistrarOption {
	return func(r *Registrar) {
		r.log = l
	}
}

func NewRegistrar(provider Provider, store securestore.Store, api DeviceAPI, options ...RegistrarOption) *Registrar {
	r := &Registrar{
		provider: provider,
		store:    store,
		api:      api,
		log:      log.Logger.With().Str("component", "push").Logger(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Init runs once at process start. It loads the cached token, asks the
// platform for a fresh one, and caches it regardless of whether the backend
// ever accepts it. Simulators and web skip push entirely.
func (r *Registrar) Init(ctx context.Context) error {
	if !Supported(r.provider) {
		r.log.Debug().Msg("push notifications unsupported on this device, skipping")
		return nil
	}

	cached, ok, err := r.store.Get(ctx, securestore.KeyPushToken)
	if err != nil {
		r.log.Err(err).Msg("failed to read cached push token")
	}

	r.lock.Lock()
	if ok && r.token == "" {
		r.token = cached
	}
	r.lock.Unlock()

	fresh, err := r.provider.DeviceToken(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to obtain push token")
		return errors.Wrap(err, "Registrar.Init DeviceToken")
	}
	if fresh == "" {
		return nil
	}

	r.lock.Lock()
	changed := fresh != r.token
	r.token = fresh
	if changed {
		r.registered = false
	}
	r.lock.Unlock()

	if changed {
		if err := r.store.Set(ctx, securestore.KeyPushToken, fresh); err != nil {
			r.log.Err(err).Msg("failed to cache push token")
		}
	}
	return nil
}

// Registration returns a snapshot of the registration state.
func (r *Registrar) Registration() DeviceRegistration {
	r.lock.Lock()
	defer r.lock.Unlock()
	reg := DeviceRegistration{PushToken: r.token, ServerRegistered: r.registered}
	if r.provider != nil {
		reg.Platform = r.provider.Platform()
	}
	return reg
}

// RegisterDeviceWithServer POSTs the token. It is safe to call repeatedly and
// a failed call never blocks a later one.
func (r *Registrar) RegisterDeviceWithServer(ctx context.Context) error {
	r.lock.Lock()
	pushToken := r.token
	r.lock.Unlock()

	if pushToken == "" {
		return errors.Wrap(apperrors.ErrRegistrationFailed, "no push token")
	}

	if err := r.api.RegisterDevice(ctx, pushToken, string(r.provider.Platform())); err != nil {
		return apperrors.Wrapf(apperrors.Join(apperrors.ErrRegistrationFailed, err), "Registrar.RegisterDeviceWithServer")
	}

	r.lock.Lock()
	if r.token == pushToken {
		r.registered = true
	}
	r.lock.Unlock()
	r.log.Info().Str("platform", string(r.provider.Platform())).Msg("device registered for push notifications")
	return nil
}

// RegisterIfNeeded registers the device unless it already is. Failures are
// logged and swallowed; push registration never blocks a session.
func (r *Registrar) RegisterIfNeeded(ctx context.Context) {
	if !Supported(r.provider) {
		return
	}

	r.lock.Lock()
	pushToken, registered := r.token, r.registered
	r.lock.Unlock()

	if registered {
		return
	}
	if pushToken == "" {
		if err := r.Init(ctx); err != nil {
			return
		}
	}
	if err := r.RegisterDeviceWithServer(ctx); err != nil {
		r.log.Warn().Err(err).Msg("push registration failed")
	}
}

// UnregisterDeviceFromServer is best effort: failures are logged, never
// returned, because logout has to proceed regardless.
func (r *Registrar) UnregisterDeviceFromServer(ctx context.Context) {
	r.lock.Lock()
	pushToken := r.token
	r.registered = false
	r.lock.Unlock()

	if pushToken == "" {
		return
	}
	if err := r.api.UnregisterDevice(ctx, pushToken); err != nil {
		r.log.Warn().Err(err).Msg("push unregistration failed")
		return
	}
	r.log.Info().Msg("device unregistered from push notifications")
}

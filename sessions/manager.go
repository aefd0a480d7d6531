// Package sessions owns the client's session state machine: cold-start
// restore, login, logout and the reaction to an unrecoverable token refresh.
package sessions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cagkantasci/smartop/apiclient"
	"github.com/cagkantasci/smartop/biometric"
	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/cagkantasci/smartop/token"
	"github.com/cagkantasci/smartop/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultRegisterDelay = time.Second

// AuthAPI is the slice of apiclient.Client the manager drives.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*apiclient.LoginResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context) (*users.User, error)
	Observe(o apiclient.RefreshObserver) (dispose func())
}

// DeviceRegistrar keeps the push device registration in step with the session.
type DeviceRegistrar interface {
	RegisterIfNeeded(ctx context.Context)
	UnregisterDeviceFromServer(ctx context.Context)
}

// CredentialVault releases a cached credential after a biometric challenge.
type CredentialVault interface {
	BiometricLogin(ctx context.Context) (biometric.LoginResult, error)
}

var _ apiclient.RefreshObserver = (*Manager)(nil)

// Manager is the only writer of session State. Every transition bumps an
// epoch; an operation whose epoch was superseded while it waited on the
// network drops its result.
type Manager struct {
	api           AuthAPI
	tokens        apiclient.TokenStore
	registrar     DeviceRegistrar
	vault         CredentialVault
	registerDelay time.Duration
	log           zerolog.Logger

	lock           sync.Mutex
	state          State
	epoch          uint64
	listeners      map[int]Listener
	nextListener   int
	registerTimer  *time.Timer
	registerCancel context.CancelFunc

	stopObserving func()
}

type ManagerOption func(*Manager)

func WithVault(v CredentialVault) ManagerOption {
	return func(m *Manager) {
		m.vault = v
	}
}

// WithRegisterDelay sets the pause between a successful login and the push
// device registration.
func WithRegisterDelay(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.registerDelay = d
	}
}

func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager returns an unauthenticated manager observing api's refreshes.
func NewManager(api AuthAPI, tokens apiclient.TokenStore, registrar DeviceRegistrar, options ...ManagerOption) *Manager {
	m := &Manager{
		api:           api,
		tokens:        tokens,
		registrar:     registrar,
		registerDelay: DefaultRegisterDelay,
		log:           log.Logger.With().Str("component", "sessions").Logger(),
		state:         State{Status: StatusUnauthenticated},
		listeners:     make(map[int]Listener),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.registerDelay < 0 {
		m.registerDelay = 0
	}
	m.stopObserving = api.Observe(m)
	return m
}

// State returns a snapshot of the current session.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state.clone()
}

// Subscribe registers l for every state change and returns its disposer.
func (m *Manager) Subscribe(l Listener) (dispose func()) {
	m.lock.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = l
	m.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.lock.Lock()
			delete(m.listeners, id)
			m.lock.Unlock()
		})
	}
}

// CheckAuthStatus restores a persisted session on cold start. Any failure
// leaves the client unauthenticated with no tokens; it never returns an error.
func (m *Manager) CheckAuthStatus(ctx context.Context) State {
	epoch := m.begin(StatusAuthenticating)

	access, err := m.tokens.AccessToken(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to read stored access token")
		return m.teardown(ctx, epoch, nil)
	}
	if access == "" {
		// a refresh token without its access token is not a session either
		return m.teardown(ctx, epoch, nil)
	}
	m.log.Debug().Str("subject", token.Subject(access)).Msg("restoring stored session")

	user, err := m.api.Me(ctx)
	if err != nil {
		m.log.Info().Err(err).Msg("stored session is not valid")
		return m.teardown(ctx, epoch, nil)
	}

	state := m.settle(epoch, State{Status: StatusAuthenticated, User: user})
	if state.Status == StatusAuthenticated {
		m.scheduleRegistration(epoch)
	}
	return state
}

// Login exchanges credentials for a session. On failure nothing is retained,
// including the tokens of a session that was active before, and the error is
// returned as is.
func (m *Manager) Login(ctx context.Context, email, password string) (*users.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidInput, "Manager.Login email and password are required")
	}

	epoch := m.begin(StatusAuthenticating)

	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.teardown(ctx, epoch, err)
		return nil, err
	}

	m.lock.Lock()
	if m.epoch != epoch {
		m.lock.Unlock()
		return nil, errors.Wrap(apperrors.ErrUnauthenticated, "Manager.Login superseded by logout")
	}
	if err := m.tokens.SetTokens(ctx, resp.AccessToken, resp.RefreshToken); err != nil {
		m.lock.Unlock()
		err = errors.Wrap(err, "Manager.Login persist tokens")
		m.teardown(ctx, epoch, err)
		return nil, err
	}
	user := resp.User
	m.state = State{Status: StatusAuthenticated, User: &user}
	listeners, snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.publish(listeners, snapshot)
	m.scheduleRegistration(epoch)
	m.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("logged in")

	return snapshot.User, nil
}

// LoginWithBiometrics retrieves the cached credential through the vault and
// performs a normal Login with it. A vault refusal is reported through the
// result's Reason and leaves the session untouched.
func (m *Manager) LoginWithBiometrics(ctx context.Context) (biometric.LoginResult, *users.User, error) {
	if m.vault == nil {
		return biometric.LoginResult{Reason: biometric.ReasonUnavailable}, nil, nil
	}

	res, err := m.vault.BiometricLogin(ctx)
	if err != nil {
		return biometric.LoginResult{}, nil, errors.Wrap(err, "Manager.LoginWithBiometrics")
	}
	if !res.OK {
		return res, nil, nil
	}

	user, err := m.Login(ctx, res.Email, res.Password)
	res.Password = ""
	return res, user, err
}

// Logout always ends unauthenticated with no local tokens. The device
// unregistration and the remote logout are attempted first and their
// failures are only logged.
func (m *Manager) Logout(ctx context.Context) {
	m.lock.Lock()
	m.epoch++
	epoch := m.epoch
	m.cancelRegistrationLocked()
	m.lock.Unlock()

	m.registrar.UnregisterDeviceFromServer(ctx)

	refresh, err := m.tokens.RefreshToken(ctx)
	switch {
	case err != nil:
		m.log.Warn().Err(err).Msg("failed to read refresh token for remote logout")
	case refresh != "":
		if err := m.api.Logout(ctx, refresh); err != nil {
			m.log.Warn().Err(err).Msg("remote logout failed")
		}
	}

	// A transition started while the remote calls were running is superseded.
	m.lock.Lock()
	if m.epoch != epoch {
		m.epoch++
		epoch = m.epoch
		m.cancelRegistrationLocked()
	}
	m.lock.Unlock()

	m.teardown(ctx, epoch, nil)
	m.log.Info().Msg("logged out")
}

// RefreshUser re-fetches the profile. A failure is logged and returned but
// does not change the session status.
func (m *Manager) RefreshUser(ctx context.Context) (*users.User, error) {
	m.lock.Lock()
	epoch := m.epoch
	authenticated := m.state.IsAuthenticated()
	m.lock.Unlock()
	if !authenticated {
		return nil, errors.Wrap(apperrors.ErrUnauthenticated, "Manager.RefreshUser")
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to refresh user profile")
		return nil, err
	}

	m.lock.Lock()
	if m.epoch != epoch || !m.state.IsAuthenticated() {
		m.lock.Unlock()
		return nil, errors.Wrap(apperrors.ErrUnauthenticated, "Manager.RefreshUser session changed")
	}
	m.state.User = user
	listeners, snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.publish(listeners, snapshot)
	return snapshot.User, nil
}

// UpdateUser merges p into the cached user without any network call. It
// reports false when there is no user.
func (m *Manager) UpdateUser(p users.Patch) (*users.User, bool) {
	m.lock.Lock()
	if m.state.User == nil {
		m.lock.Unlock()
		return nil, false
	}
	merged := m.state.User.Apply(p)
	m.state.User = &merged
	listeners, snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.publish(listeners, snapshot)
	return snapshot.User, true
}

// Close stops observing refreshes and cancels a pending registration.
func (m *Manager) Close() {
	m.lock.Lock()
	m.cancelRegistrationLocked()
	stop := m.stopObserving
	m.stopObserving = nil
	m.lock.Unlock()

	if stop != nil {
		stop()
	}
}

// RefreshStarted marks an authenticated session as refreshing.
func (m *Manager) RefreshStarted() {
	m.transitionIf(StatusAuthenticated, StatusRefreshing)
}

func (m *Manager) RefreshSucceeded() {
	m.transitionIf(StatusRefreshing, StatusAuthenticated)
}

// RefreshFailed tears the session down. The client has already cleared the
// stored tokens.
func (m *Manager) RefreshFailed(err error) {
	m.lock.Lock()
	if m.state.Status == StatusUnauthenticated {
		m.lock.Unlock()
		return
	}
	m.epoch++
	m.cancelRegistrationLocked()
	m.state = State{Status: StatusUnauthenticated, Err: err}
	listeners, snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.log.Warn().Err(err).Msg("session ended after failed token refresh")
	m.publish(listeners, snapshot)
}

func (m *Manager) transitionIf(from, to Status) {
	m.lock.Lock()
	if m.state.Status != from {
		m.lock.Unlock()
		return
	}
	m.state.Status = to
	listeners, snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.publish(listeners, snapshot)
}

// begin starts a new transition and returns its epoch.
func (m *Manager) begin(status Status) uint64 {
	m.lock.Lock()
	m.epoch++
	epoch := m.epoch
	m.cancelRegistrationLocked()
	m.state = State{Status: status}
	listeners, snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.publish(listeners, snapshot)
	return epoch
}

// settle publishes next if epoch is still current and returns the state.
func (m *Manager) settle(epoch uint64, next State) State {
	m.lock.Lock()
	if m.epoch != epoch {
		current := m.state.clone()
		m.lock.Unlock()
		return current
	}
	m.state = next
	listeners, snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.publish(listeners, snapshot)
	return snapshot
}

// teardown clears local tokens and settles unauthenticated if epoch is still
// current. If the tokens cannot be removed the session settles in
// StatusError instead.
func (m *Manager) teardown(ctx context.Context, epoch uint64, cause error) State {
	m.lock.Lock()
	if m.epoch != epoch {
		current := m.state.clone()
		m.lock.Unlock()
		return current
	}
	m.state = State{Status: StatusUnauthenticated, Err: cause}
	if err := m.tokens.ClearTokens(context.WithoutCancel(ctx)); err != nil {
		m.log.Error().Err(err).Msg("failed to clear stored tokens")
		m.state = State{Status: StatusError, Err: apperrors.Join(cause, err)}
	}
	listeners, snapshot := m.snapshotLocked()
	m.lock.Unlock()

	m.publish(listeners, snapshot)
	return snapshot
}

// must hold m.lock
func (m *Manager) snapshotLocked() ([]Listener, State) {
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	return listeners, m.state.clone()
}

func (m *Manager) publish(listeners []Listener, s State) {
	for _, l := range listeners {
		l(s.clone())
	}
}

func (m *Manager) scheduleRegistration(epoch uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.epoch != epoch {
		return
	}
	m.cancelRegistrationLocked()

	ctx, cancel := context.WithCancel(context.Background())
	m.registerCancel = cancel
	m.registerTimer = time.AfterFunc(m.registerDelay, func() {
		m.lock.Lock()
		current := m.epoch == epoch
		m.lock.Unlock()
		if current {
			m.registrar.RegisterIfNeeded(ctx)
		}
	})
}

// must hold m.lock
func (m *Manager) cancelRegistrationLocked() {
	if m.registerTimer != nil {
		m.registerTimer.Stop()
		m.registerTimer = nil
	}
	if m.registerCancel != nil {
		m.registerCancel()
		m.registerCancel = nil
	}
}

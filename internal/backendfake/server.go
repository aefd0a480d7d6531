// Package backendfake is an in-process stand-in for the fleet backend. It
// issues HS256 access tokens and single-use rotating refresh tokens, and
// serves the auth, device, biometric and list endpoints the client uses.
// Failures can be injected per route.
package backendfake

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cagkantasci/smartop/apiclient"
	"github.com/cagkantasci/smartop/users"
	fakeuserrepo "github.com/cagkantasci/smartop/users/repofake"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const APIPrefix = "/api/v1"

// ListShape selects how list endpoints wrap their rows.
type ListShape int

const (
	ShapeKeyed ListShape = iota // {"machines": [...]} / {"submissions": [...]}
	ShapeBare                   // [...]
	ShapeData                   // {"data": [...]}
)

type routeKey struct {
	method string
	route  string
}

// Server is safe for concurrent use.
type Server struct {
	users      users.Repo
	signer     *hmacSigner
	refresh    *refreshManager
	accessTTL  time.Duration
	bcryptCost int
	log        zerolog.Logger

	generation atomic.Int64

	lock        sync.Mutex
	failures    map[routeKey]int
	calls       map[routeKey]int
	devices     map[string]string // push token to platform
	machines    []apiclient.Machine
	submissions []apiclient.Submission
	shape       ListShape
}

type Option func(*Server)

func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = d
	}
}

func WithRefreshExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.refresh.expiry = d
	}
}

func WithSigningSecret(secret string) Option {
	return func(s *Server) {
		s.signer = newHMACSigner(secret)
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

func WithUserRepo(repo users.Repo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

func NewServer(options ...Option) *Server {
	s := &Server{
		users:      fakeuserrepo.NewFakeUserRepo(),
		signer:     newHMACSigner(uuid.New().String()),
		refresh:    newRefreshManager(30 * 24 * time.Hour),
		accessTTL:  15 * time.Minute,
		bcryptCost: bcrypt.MinCost,
		log:        log.Logger.With().Str("component", "backendfake").Logger(),
		failures:   make(map[routeKey]int),
		calls:      make(map[routeKey]int),
		devices:    make(map[string]string),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// AddUser stores u with a bcrypt hash of password and returns the stored user.
func (s *Server) AddUser(u users.User, password string) (users.User, error) {
	hash, err := users.HashPassword(password, s.bcryptCost)
	if err != nil {
		return users.User{}, fmt.Errorf("hash password: %w", err)
	}
	account := &users.Account{User: u, PasswordHash: hash}
	if err := s.users.Upsert(account); err != nil {
		return users.User{}, err
	}
	return account.User, nil
}

// User returns the stored user with the given ID.
func (s *Server) User(id string) (users.User, error) {
	account, err := s.users.GetByID(id)
	if err != nil {
		return users.User{}, err
	}
	return account.User, nil
}

// Fail makes every request to method+route answer status until cleared with
// status 0. route is relative to APIPrefix, e.g. "/auth/logout".
func (s *Server) Fail(method, route string, status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if status == 0 {
		delete(s.failures, routeKey{method, route})
		return
	}
	s.failures[routeKey{method, route}] = status
}

// Calls reports how many requests reached method+route, injected failures included.
func (s *Server) Calls(method, route string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls[routeKey{method, route}]
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.generation.Add(1)
}

// RevokeRefreshTokens invalidates every outstanding refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.refresh.Revoke()
}

// ActiveRefreshTokens reports the number of unused refresh tokens.
func (s *Server) ActiveRefreshTokens() int {
	return s.refresh.Count()
}

// Devices returns the registered push tokens and their platforms.
func (s *Server) Devices() map[string]string {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make(map[string]string, len(s.devices))
	for k, v := range s.devices {
		out[k] = v
	}
	return out
}

func (s *Server) SetMachines(machines ...apiclient.Machine) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.machines = machines
}

func (s *Server) SetSubmissions(submissions ...apiclient.Submission) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.submissions = submissions
}

func (s *Server) SetListShape(shape ListShape) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.shape = shape
}

// Handler serves the API under APIPrefix.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	public := []func(http.HandlerFunc) http.HandlerFunc{s.loggingMiddleware, s.failureMiddleware}
	private := append(public[:len(public):len(public)], s.requireAuth)

	mux.HandleFunc("POST "+APIPrefix+apiclient.RouteAuthLogin, ChainMiddleware(s.handleLogin, public...))
	mux.HandleFunc("POST "+APIPrefix+apiclient.RouteAuthRefresh, ChainMiddleware(s.handleRefresh, public...))
	mux.HandleFunc("POST "+APIPrefix+apiclient.RouteAuthLogout, ChainMiddleware(s.handleLogout, private...))
	mux.HandleFunc("GET "+APIPrefix+apiclient.RouteAuthMe, ChainMiddleware(s.handleMe, private...))
	mux.HandleFunc("POST "+APIPrefix+apiclient.RouteNotificationDevice, ChainMiddleware(s.handleRegisterDevice, private...))
	mux.HandleFunc("DELETE "+APIPrefix+apiclient.RouteNotificationDevice, ChainMiddleware(s.handleUnregisterDevice, private...))
	mux.HandleFunc("POST "+APIPrefix+apiclient.RouteUserBiometric, ChainMiddleware(s.handleBiometric, private...))
	mux.HandleFunc("GET "+APIPrefix+apiclient.RouteMachines, ChainMiddleware(s.handleMachines, private...))
	mux.HandleFunc("GET "+APIPrefix+apiclient.RouteSubmissions, ChainMiddleware(s.handleSubmissions, private...))

	return mux
}

func (s *Server) countCall(method, route string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls[routeKey{method, route}]++
}

func (s *Server) failure(method, route string) (int, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	status, ok := s.failures[routeKey{method, route}]
	return status, ok
}

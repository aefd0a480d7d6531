package token

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/cagkantasci/smartop/securestore"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Pair is the access/refresh token pair issued by the backend.
// The refresh token rotates: every refresh returns a new one that replaces the old.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Store persists the token pair as two independent secure-storage entries.
// Callers only ever observe both tokens or neither.
type Store struct {
	secure securestore.Store
	mu     sync.Mutex
}

func NewStore(secure securestore.Store) *Store {
	return &Store{secure: secure}
}

// AccessToken returns the stored access token, or "" when there is none.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, securestore.KeyAccessToken)
}

// RefreshToken returns the stored refresh token, or "" when there is none.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, securestore.KeyRefreshToken)
}

// Pair reads both tokens. A half-present pair is reported as absent.
func (s *Store) Pair(ctx context.Context) (Pair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	access, err := s.get(ctx, securestore.KeyAccessToken)
	if err != nil {
		return Pair{}, false, err
	}
	refresh, err := s.get(ctx, securestore.KeyRefreshToken)
	if err != nil {
		return Pair{}, false, err
	}
	if access == "" || refresh == "" {
		return Pair{}, false, nil
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, true, nil
}

// SetTokens replaces the stored pair. If the second write fails both entries
// are removed so that a half-written pair is never left behind.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	if err := validatePair(access, refresh); err != nil {
		return errors.Wrap(err, "Store.SetTokens")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.setLocked(ctx, access, refresh), "Store.SetTokens")
}

// ReplaceTokens stores a rotated pair only while expectedRefresh is still the
// stored refresh token. It reports false and writes nothing when the pair was
// cleared or replaced since expectedRefresh was read.
func (s *Store) ReplaceTokens(ctx context.Context, expectedRefresh, access, refresh string) (bool, error) {
	if err := validatePair(access, refresh); err != nil {
		return false, errors.Wrap(err, "Store.ReplaceTokens")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx, securestore.KeyRefreshToken)
	if err != nil {
		return false, errors.Wrap(err, "Store.ReplaceTokens")
	}
	if current == "" || current != expectedRefresh {
		return false, nil
	}
	if err := s.setLocked(ctx, access, refresh); err != nil {
		return false, errors.Wrap(err, "Store.ReplaceTokens")
	}
	return true, nil
}

// ClearTokens removes both entries. It is idempotent and attempts both
// deletions even if the first one fails.
func (s *Store) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.clearLocked(ctx), "Store.ClearTokens")
}

// ClearTokensIf removes both entries only while expectedRefresh is still the
// stored refresh token, and reports whether it did.
func (s *Store) ClearTokensIf(ctx context.Context, expectedRefresh string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx, securestore.KeyRefreshToken)
	if err != nil {
		return false, errors.Wrap(err, "Store.ClearTokensIf")
	}
	if current == "" || current != expectedRefresh {
		return false, nil
	}
	if err := s.clearLocked(ctx); err != nil {
		return false, errors.Wrap(err, "Store.ClearTokensIf")
	}
	return true, nil
}

// OAuth2Token returns the stored pair as an oauth2 bearer token, or nil when
// no pair is stored. Expiry comes from the access token's exp claim when it
// is a JWT.
func (s *Store) OAuth2Token(ctx context.Context) (*oauth2.Token, error) {
	pair, ok, err := s.Pair(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return pair.OAuth2(), nil
}

// OAuth2 converts the pair into an oauth2 bearer token.
func (p Pair) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       ExpiresAt(p.AccessToken),
	}
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.secure.Get(ctx, key)
	if err != nil {
		return "", errors.Wrapf(err, "Store.get %s", key)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

func validatePair(access, refresh string) error {
	if strings.TrimSpace(access) == "" || strings.TrimSpace(refresh) == "" {
		return errors.Wrap(apperrors.ErrInvalidInput, "both tokens are required")
	}
	return nil
}

// must hold s.mu
func (s *Store) setLocked(ctx context.Context, access, refresh string) error {
	if err := s.secure.Set(ctx, securestore.KeyAccessToken, access); err != nil {
		// the previous refresh token may still be stored
		_ = s.secure.Delete(ctx, securestore.KeyRefreshToken)
		return errors.Wrap(err, "access token")
	}
	if err := s.secure.Set(ctx, securestore.KeyRefreshToken, refresh); err != nil {
		_ = s.clearLocked(ctx)
		return errors.Wrap(err, "refresh token")
	}
	return nil
}

// must hold s.mu
func (s *Store) clearLocked(ctx context.Context) error {
	accessErr := s.secure.Delete(ctx, securestore.KeyAccessToken)
	refreshErr := s.secure.Delete(ctx, securestore.KeyRefreshToken)
	return apperrors.Join(accessErr, refreshErr)
}

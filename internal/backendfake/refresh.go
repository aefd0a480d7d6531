package backendfake

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const refreshTokenBytes = 32

type storedRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

// refreshManager issues opaque refresh tokens and rotates them on use. A
// token is valid exactly once.
type refreshManager struct {
	lock   sync.Mutex
	tokens map[string]*storedRefreshToken
	expiry time.Duration
}

func newRefreshManager(expiry time.Duration) *refreshManager {
	return &refreshManager{
		tokens: make(map[string]*storedRefreshToken),
		expiry: expiry,
	}
}

func (m *refreshManager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	m.lock.Lock()
	m.tokens[tokenStr] = &storedRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}
	m.lock.Unlock()
	return tokenStr, nil
}

// Rotate consumes token and issues a replacement for the same user.
func (m *refreshManager) Rotate(token string) (userID, next string, err error) {
	m.lock.Lock()
	rt, ok := m.tokens[token]
	delete(m.tokens, token)
	m.lock.Unlock()

	if !ok {
		return "", "", apperrors.ErrNotFound
	}
	if m.isExpired(rt) {
		return "", "", fmt.Errorf("refresh token expired: %w", apperrors.ErrUnauthenticated)
	}

	next, err = m.Create(rt.UserID)
	if err != nil {
		return "", "", err
	}
	return rt.UserID, next, nil
}

func (m *refreshManager) Delete(token string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.tokens, token)
}

// Revoke drops every outstanding token.
func (m *refreshManager) Revoke() {
	m.lock.Lock()
	defer m.lock.Unlock()
	clear(m.tokens)
}

func (m *refreshManager) Count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.tokens)
}

func (m *refreshManager) isExpired(rt *storedRefreshToken) bool {
	return m.expiry > 0 && NowTimeFunc().Sub(rt.Iat) > m.expiry
}

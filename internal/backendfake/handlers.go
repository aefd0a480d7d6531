package backendfake

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cagkantasci/smartop/apiclient"
	"github.com/cagkantasci/smartop/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	tokenPair
	User users.User `json:"user"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

type deviceBody struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type biometricBody struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	account, err := s.users.GetByEmail(body.Email)
	if err != nil || !users.CheckPasswordHash(body.Password, account.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	pair, err := s.issue(account.User.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue tokens")
		writeError(w, http.StatusInternalServerError, "failed to issue tokens")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{tokenPair: pair, User: account.User})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	userID, refreshToken, err := s.refresh.Rotate(body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	access, err := s.accessToken(userID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to sign access token")
		writeError(w, http.StatusInternalServerError, "failed to issue tokens")
		return
	}
	writeJSON(w, http.StatusOK, tokenPair{AccessToken: access, RefreshToken: refreshToken})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.RefreshToken != "" {
		s.refresh.Delete(body.RefreshToken)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, err := s.users.GetByID(userIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]users.User{"user": account.User})
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var body deviceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	s.lock.Lock()
	s.devices[body.Token] = body.Platform
	s.lock.Unlock()
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *Server) handleUnregisterDevice(w http.ResponseWriter, r *http.Request) {
	var body deviceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	s.lock.Lock()
	delete(s.devices, body.Token)
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleBiometric(w http.ResponseWriter, r *http.Request) {
	var body biometricBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := s.users.SetBiometric(userIDFrom(r.Context()), *body.Enabled); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"biometricEnabled": *body.Enabled})
}

func (s *Server) handleMachines(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	s.lock.Lock()
	rows := make([]apiclient.Machine, 0, len(s.machines))
	for _, m := range s.machines {
		if status == "" || strings.EqualFold(m.Status, status) {
			rows = append(rows, m)
		}
	}
	shape := s.shape
	s.lock.Unlock()

	writeJSON(w, http.StatusOK, wrapList(shape, "machines", rows))
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	s.lock.Lock()
	rows := make([]apiclient.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		if status == "" || strings.EqualFold(sub.Status, status) {
			rows = append(rows, sub)
		}
	}
	shape := s.shape
	s.lock.Unlock()

	writeJSON(w, http.StatusOK, wrapList(shape, "submissions", rows))
}

func (s *Server) issue(userID string) (tokenPair, error) {
	access, err := s.accessToken(userID)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := s.refresh.Create(userID)
	if err != nil {
		return tokenPair{}, err
	}
	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Server) accessToken(userID string) (string, error) {
	now := NowTimeFunc()
	return s.signer.Sign(jwt.MapClaims{
		"sub":           userID,
		"iat":           now.Unix(),
		"exp":           now.Add(s.accessTTL).Unix(),
		"jti":           uuid.New().String(),
		claimGeneration: s.generation.Load(),
	})
}

func wrapList[T any](shape ListShape, key string, rows []T) any {
	switch shape {
	case ShapeBare:
		return rows
	case ShapeData:
		return map[string][]T{"data": rows}
	default:
		return map[string][]T{key: rows}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"statusCode": status, "message": message})
}

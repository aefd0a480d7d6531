package apiclient

import (
	"github.com/cagkantasci/smartop/token"
	"github.com/cagkantasci/smartop/users"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body of POST /auth/login.
type LoginResponse struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         users.User `json:"user"`
}

func (r LoginResponse) Pair() token.Pair {
	return token.Pair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	User *users.User `json:"user"`
}

type deviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

type biometricRequest struct {
	Enabled bool `json:"enabled"`
}

// Machine is the slice of a machine record the badge counts need.
type Machine struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

// Submission is the slice of a checklist submission the badge counts need.
type Submission struct {
	ID        string `json:"id"`
	MachineID string `json:"machineId,omitempty"`
	Status    string `json:"status,omitempty"`
}

const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

// Pending reports whether the submission still awaits review. Rows without a
// status come from the status=pending filter and count as pending.
func (s Submission) Pending() bool {
	return s.Status == "" || s.Status == SubmissionPending
}

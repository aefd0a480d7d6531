package users

import (
	"strings"

	"github.com/cagkantasci/smartop/internal/utils"
)

// RoleType is the user's role within their organization
type RoleType string

const (
	RoleAdmin    RoleType = "admin"    // Organization owner, manages billing, users and fleet
	RoleManager  RoleType = "manager"  // Manages machines, jobs and approves checklists
	RoleOperator RoleType = "operator" // Operates machines and submits daily checklists
)

func (r RoleType) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleOperator:
		return true
	}
	return false
}

// User is the authenticated account as returned by /auth/login and /auth/me.
// It is replaced wholesale on every login, getMe and refresh and only patched
// locally through Apply.
type User struct {
	ID               string   `json:"id"`                         // Unique identifier for the user
	Email            string   `json:"email"`                      // Login email
	FirstName        string   `json:"firstName,omitempty"`        // First name of the user
	LastName         string   `json:"lastName,omitempty"`         // Last name of the user
	Role             RoleType `json:"role"`                       // admin, manager or operator
	OrganizationID   string   `json:"organizationId,omitempty"`   // Organization the user belongs to
	Phone            string   `json:"phone,omitempty"`            // Contact phone
	AvatarURL        string   `json:"avatarUrl,omitempty"`        // Profile picture
	Language         string   `json:"language,omitempty"`         // Preferred UI language (tr, en, ...)
	BiometricEnabled bool     `json:"biometricEnabled,omitempty"` // Server-side flag mirrored from the biometric vault
}

// Patch is a partial update of a cached user; nil fields are left untouched.
type Patch struct {
	FirstName        *string   `json:"firstName,omitempty"`
	LastName         *string   `json:"lastName,omitempty"`
	Role             *RoleType `json:"role,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	AvatarURL        *string   `json:"avatarUrl,omitempty"`
	Language         *string   `json:"language,omitempty"`
	BiometricEnabled *bool     `json:"biometricEnabled,omitempty"`
}

// Apply returns a copy of u with the non-nil fields of p merged in.
// Identity fields (ID, Email, OrganizationID) are never patched.
func (u User) Apply(p Patch) User {
	if p.FirstName != nil {
		u.FirstName = utils.Value(p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = utils.Value(p.LastName)
	}
	if p.Role != nil && p.Role.Valid() {
		u.Role = utils.Value(p.Role)
	}
	if p.Phone != nil {
		u.Phone = utils.Value(p.Phone)
	}
	if p.AvatarURL != nil {
		u.AvatarURL = utils.Value(p.AvatarURL)
	}
	if p.Language != nil {
		u.Language = utils.Value(p.Language)
	}
	if p.BiometricEnabled != nil {
		u.BiometricEnabled = utils.Value(p.BiometricEnabled)
	}
	return u
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) HasRole(roles ...RoleType) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// CanApprove reports whether the user reviews checklist submissions.
func (u *User) CanApprove() bool {
	return u.HasRole(RoleAdmin, RoleManager)
}

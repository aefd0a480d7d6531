package sessions

import "github.com/cagkantasci/smartop/users"

type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"
	StatusRefreshing      Status = "refreshing"
	// StatusError means the session was torn down but the stored tokens could
	// not be removed. It is never authenticated.
	StatusError Status = "error"
)

// State is a snapshot of the session. User is a copy; mutating it does not
// affect the manager.
type State struct {
	Status Status
	User   *users.User
	Err    error
}

// IsAuthenticated is true while authenticated, including mid-refresh.
func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated || s.Status == StatusRefreshing
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

type Listener func(State)

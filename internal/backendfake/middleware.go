package backendfake

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const contextKeyUserID contextKey = "user_id"

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Msg("request")
		next(w, r)
	}
}

// failureMiddleware answers with an injected status for routes set up with Fail.
func (s *Server) failureMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.countCall(r.Method, routeOf(r))
		if status, ok := s.failure(r.Method, routeOf(r)); ok {
			writeError(w, status, http.StatusText(status))
			return
		}
		next(w, r)
	}
}

// requireAuth validates the bearer access token and injects the user ID.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := s.signer.Verify(parts[1])
		if err != nil {
			s.log.Debug().Err(err).Msg("rejected access token")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if gen, _ := claims[claimGeneration].(float64); int64(gen) != s.generation.Load() {
			writeError(w, http.StatusUnauthorized, "Token expired")
			return
		}
		sub, _ := claims.GetSubject()
		if _, err := s.users.GetByID(sub); err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUserID, sub)
		next(w, r.WithContext(ctx))
	}
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID).(string)
	return id
}

func routeOf(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, APIPrefix)
}

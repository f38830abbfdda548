package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sports-buddy-backend/internal/services"
	"sports-buddy-backend/internal/session"

	"github.com/rs/zerolog/log"
)

type contextKey string

const sessionKey contextKey = "session"

// TokenValidator turns a bearer token into an identity
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*session.Identity, error)
}

// SessionResolver turns an identity into a session state
type SessionResolver interface {
	Resolve(ctx context.Context, id *session.Identity) (session.State, error)
}

// Authenticate resolves the session of every request. Requests without an
// Authorization header continue anonymously; a header with a bad token is refused.
func Authenticate(tokens TokenValidator, resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session.Anonymous())))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, services.ErrSignInRequired)
				return
			}

			id, err := tokens.ValidateToken(r.Context(), parts[1])
			if err != nil {
				respondError(w, err)
				return
			}

			state, err := resolver.Resolve(r.Context(), id)
			if err != nil {
				respondError(w, services.AsError(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), state)))
		})
	}
}

// RequireAuth refuses anonymous requests
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetSession(r.Context()).Authenticated() {
			respondError(w, services.ErrSignInRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithSession stores the session in ctx
func WithSession(ctx context.Context, state session.State) context.Context {
	return context.WithValue(ctx, sessionKey, state)
}

// GetSession extracts the session from context, anonymous when absent
func GetSession(ctx context.Context) session.State {
	state, ok := ctx.Value(sessionKey).(session.State)
	if !ok {
		return session.Anonymous()
	}
	return state
}

// Recover turns a panic into the generic notice
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Recovered from panic")
				writeJSON(w, http.StatusInternalServerError, errorBody{
					Error:  services.GenericNotice.Message,
					Notice: services.GenericNotice,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error  string          `json:"error"`
	Notice services.Notice `json:"notice"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	var svcErr *services.Error
	if errors.As(err, &svcErr) && svcErr.Kind != services.KindUnauthenticated {
		status = http.StatusServiceUnavailable
		if svcErr.Kind == services.KindBackend {
			status = http.StatusInternalServerError
		}
	}
	notice := services.NoticeFor(err)
	writeJSON(w, status, errorBody{Error: notice.Message, Notice: notice})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var errMalformedHeader = errors.New("auth: malformed Authorization header")

type contextKey string

const subjectKey contextKey = "subject"

// CookieName is the cookie carrying an operator session token.
const CookieName = "token"

// RequireAuth rejects requests without a valid token. The token is taken
// from an "Authorization: Bearer" header, which agent clients use, or
// from the session cookie set by the GitHub login.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := extractSubject(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// OptionalAuth attaches the subject when a valid token is present and
// lets every request through.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subject, err := extractSubject(r, tokens); err == nil {
				r = r.WithContext(WithSubject(r.Context(), subject))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSubject stores an authenticated subject in ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the authenticated subject: a user ID or a
// ClientSubject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

// UserIDFromContext returns the operator user ID. Agent clients have none.
func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SubjectFromContext(ctx)
	if !ok {
		return "", false
	}
	if _, isClient := ClientID(s); isClient {
		return "", false
	}
	return s, true
}

func extractSubject(r *http.Request, tokens *TokenService) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return "", errMalformedHeader
		}
		return tokens.Validate(strings.TrimSpace(raw))
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}

package auth

import (
	"context"
	"net/http"
	"strings"
)

// SessionCookie is the name of the HttpOnly cookie carrying the JWT.
const SessionCookie = "access_token"

// contextKey is an unexported type for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue takes any as the key. With a plain string key like
// "userID", any package that knows the string can read or shadow the value.
// A package-private type means only this package can create the key, so the
// caller identity can only enter the context through this middleware and
// only leave it through UserIDFromContext — explicit, typed passing instead
// of an implicit mutable request field.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth enforces authentication on protected routes.
//
// The credential is read from the "access_token" HttpOnly cookie or, when
// the cookie is absent, from the Authorization header (with or without a
// "Bearer " prefix) — both transports are issued by the auth endpoints and
// both must be accepted. On success the caller identity is stored in the
// request context; on failure the chain stops with 401 before any handler,
// service, or repository code runs.
//
// COOKIE-BASED TOKEN STORAGE:
// HttpOnly means JavaScript cannot read the cookie, which prevents XSS from
// stealing the token.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"status":"error","statusCode":401,"code":"UNAUTHORIZED_REQUEST","message":"unauthorized request"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated caller identity.
//
// Returns ("", false) when the request never passed RequireAuth. Handlers
// on protected routes treat that as an internal inconsistency, not as an
// anonymous caller.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ContextWithUserID returns a context carrying the given caller identity.
// Exported for handler tests that exercise protected routes without
// running the middleware chain.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// extractUserID pulls the JWT from the request and validates it.
//
// Lookup order mirrors the issuing side: cookie first (browser clients),
// then the Authorization header (API clients). The header value may or may
// not carry the "Bearer " prefix.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	tokenStr := ""

	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		tokenStr = cookie.Value
	} else if header := r.Header.Get("Authorization"); header != "" {
		tokenStr = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}

	if tokenStr == "" {
		return "", http.ErrNoCookie
	}

	return tokens.Validate(tokenStr)
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/auth"
	"github.com/mahir/carmarket/internal/model"
	"github.com/mahir/carmarket/internal/service"
	"github.com/mahir/carmarket/internal/validate"
)

// Interfaces the auth handlers consume. Declared here (consumer side) so
// tests can inject fakes without touching the real Google endpoints or
// the service wiring.

// AuthProvider is the identity surface of service.AuthService.
type AuthProvider interface {
	Signup(ctx context.Context, email, password, username string) (*service.AuthResult, error)
	Signin(ctx context.Context, email, password string) (*service.AuthResult, error)
	GoogleSignIn(ctx context.Context, claims *auth.GoogleClaims) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UserExists(ctx context.Context, email string) (bool, error)
}

// IDTokenVerifier validates a Google-issued ID token (auth.GoogleVerifier).
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.GoogleClaims, error)
}

// CodeFlowProvider runs the browser authorization-code flow (auth.GoogleProvider).
type CodeFlowProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleClaims, error)
}

// MinPasswordLength applies to local signups only; federated accounts have
// no password.
const MinPasswordLength = 6

// sessionMaxAge mirrors auth.TokenTTL for the cookie lifetime.
const sessionMaxAge = int(auth.TokenTTL / time.Second)

// AuthHandler manages signup, signin, the two Google sign-in paths, and
// session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup / HandleSignin     → local email+password accounts
//   - HandleGoogleToken               → POST with a Google ID token (SPA path)
//   - HandleGoogleLogin / Callback    → browser redirect flow
//   - HandleLogout                    → clear the session cookie
type AuthHandler struct {
	auths        AuthProvider
	verifier     IDTokenVerifier
	google       CodeFlowProvider
	clientOrigin string
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. clientOrigin is where the browser
// flow lands after a completed sign-in.
func NewAuthHandler(
	auths AuthProvider,
	verifier IDTokenVerifier,
	google CodeFlowProvider,
	clientOrigin string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auths:        auths,
		verifier:     verifier,
		google:       google,
		clientOrigin: clientOrigin,
		logger:       logger,
	}
}

// credentials is the JSON body for signup and signin.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// authPayload is the data section of a successful auth response.
type authPayload struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// HandleSignup registers a local account.
//
// HTTP: POST /api/v1/auth/signup
//
// All validation rules are checked and reported together, not first-failure
// only — the client renders the full list of problems in one round trip.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.BadRequest("Invalid request body", "BAD_REQUEST"))
		return
	}

	var v validate.Collector
	v.Require(body.Email, "email is required")
	v.Email(body.Email, "email must be a valid email address")
	v.Require(body.Username, "username is required")
	v.MinLength(body.Password, MinPasswordLength, "password must be at least 6 characters")
	if err := v.Err(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auths.Signup(r.Context(), body.Email, body.Password, body.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeSuccess(w, http.StatusCreated, authPayload{User: res.User, Token: res.Token})
}

// HandleSignin authenticates a local account.
//
// HTTP: POST /api/v1/auth/signin
func (h *AuthHandler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.BadRequest("Invalid request body", "BAD_REQUEST"))
		return
	}

	var v validate.Collector
	v.Require(body.Email, "email is required")
	v.Email(body.Email, "email must be a valid email address")
	v.Require(body.Password, "password is required")
	if err := v.Err(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auths.Signin(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeSuccess(w, http.StatusOK, authPayload{User: res.User, Token: res.Token})
}

// HandleGoogleToken signs in with a Google-issued ID token.
//
// HTTP: POST /api/v1/auth/google
// The token arrives as "Authorization: Bearer <id-token>" — this is the
// path a SPA takes after running Google's client-side sign-in itself.
func (h *AuthHandler) HandleGoogleToken(w http.ResponseWriter, r *http.Request) {
	// The Bearer prefix is mandatory here: anything else fails fast instead
	// of being forwarded to Google as a token.
	idToken, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || idToken == "" {
		writeError(w, apperror.BadRequest("Token not found", "TOKEN_NOT_FOUND"))
		return
	}

	claims, err := h.verifier.Verify(r.Context(), idToken)
	if err != nil {
		h.logger.Warn("google ID token rejected", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthenticated("Invalid Google credential"))
		return
	}

	res, err := h.auths.GoogleSignIn(r.Context(), claims)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeSuccess(w, http.StatusOK, authPayload{User: res.User, Token: res.Token})
}

// HandleGoogleLogin starts the browser OAuth flow.
//
// HTTP: GET /api/v1/auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived cookie before the redirect;
// the callback requires the returned state to match it, which proves the
// flow started here and not on an attacker's page.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the browser OAuth flow.
//
// HTTP: GET /api/v1/auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter against the cookie (CSRF check)
//  2. Exchange the code for the Google profile
//  3. Upsert the account and issue the session cookie
//  4. Redirect to the client app
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("google callback: missing state cookie")
		writeError(w, apperror.BadRequest("Invalid OAuth state", "BAD_REQUEST"))
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeError(w, apperror.BadRequest("Invalid OAuth state", "BAD_REQUEST"))
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// The user may have denied the consent screen.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, h.clientOrigin+"/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.BadRequest("Missing OAuth code", "BAD_REQUEST"))
		return
	}

	claims, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthenticated("Authentication failed"))
		return
	}

	res, err := h.auths.GoogleSignIn(r.Context(), claims)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	http.Redirect(w, r, h.clientOrigin, http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/v1/auth/logout
//
// Sessions are stateless JWTs, so logout is purely client-side: the token
// stays technically valid until its expiry, but the browser no longer
// holds it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeSuccess(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// setSessionCookie installs the 7-day session token.
// HttpOnly keeps it away from scripts; SameSite=Lax keeps it off
// cross-site POSTs. Secure should be enabled behind HTTPS.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

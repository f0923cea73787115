// Package service — authentication business logic.
//
// AuthService is the business logic layer for identity. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//	                   ↘ PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Local signup/signin with bcrypt-hashed passwords
//   - Federated Google sign-in: upsert the account, issue a token
//   - Encapsulate all auth rules in one place, away from HTTP concerns
//   - Be easily testable with mock dependencies
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/auth"
	"github.com/mahir/carmarket/internal/model"
	"github.com/mahir/carmarket/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go (or main.go) when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is returned by authentication operations.
// It bundles the user record and the issued JWT together so the caller
// (the HTTP handler) can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Signup registers a local email/password account.
//
// The email is the account's natural key: a second signup with the same
// address fails with a conflict. The pre-check gives a friendly error for
// the common case; the UNIQUE constraint in the repository still backstops
// the race where two signups for the same email arrive at once.
//
// On success the new account is already signed in — the returned token is
// the same 7-day session credential Signin issues.
func (s *AuthService) Signup(ctx context.Context, email, password, username string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking existing account: %w", err)
	}
	if exists {
		return nil, apperror.Conflict("User already exists", "USER_ALREADY_EXISTS")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Username:     strings.TrimSpace(username),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent signup can slip past the pre-check; the repository
		// reports it as the same conflict the pre-check would have raised.
		return nil, err
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.issueSession(user)
}

// Signin authenticates a local account.
//
// An unknown email is reported as not-found; a known email with the wrong
// password as unauthenticated. bcrypt's comparison is constant-time, so the
// password check itself leaks nothing about how close the guess was.
func (s *AuthService) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == "" {
		// Google-only account: there is no password to check.
		return nil, apperror.Unauthenticated("Invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthenticated("Invalid email or password")
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID))

	return s.issueSession(user)
}

// GoogleSignIn handles a verified federated identity.
//
// The caller (handler) has already verified the Google credential — either
// a posted ID token checked against tokeninfo, or an authorization code
// exchanged server-side. This method only deals with account state:
//
//  1. Upsert the account by email (create on first sign-in, refresh the
//     profile image and mark verified on subsequent ones)
//  2. Issue the session token
//
// WHY UPSERT (not insert + check conflict)?
// Google guarantees the email is verified and stable, so the same email
// always maps to the same account. First sign-in → INSERT; later sign-ins →
// UPDATE. An existing local account with that email simply gains the
// verified flag; its password keeps working.
func (s *AuthService) GoogleSignIn(ctx context.Context, claims *auth.GoogleClaims) (*AuthResult, error) {
	if claims == nil {
		return nil, fmt.Errorf("service/auth: google claims must not be nil")
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	username := strings.TrimSpace(claims.Name)
	if username == "" {
		// Google profiles can omit the display name; fall back to the
		// address's local part so the account is never nameless.
		username, _, _ = strings.Cut(email, "@")
	}

	user := &model.User{
		Email:      email,
		Username:   username,
		ProfileImg: claims.Picture,
		Verified:   true,
	}
	if err := s.users.UpsertByEmail(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting google account %s: %w", email, err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.issueSession(user)
}

// GetUserByID returns the user for the given internal ID.
//
// Used by the profile handler to look up the full record after the
// middleware validates the JWT and extracts the userID from the token's
// Subject claim.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UserExists reports whether an account is registered under the email.
// Backs the public pre-signup check the client runs on the email field.
func (s *AuthService) UserExists(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("service/auth: checking account %s: %w", email, err)
	}
	return exists, nil
}

// issueSession mints the 7-day JWT for an authenticated user.
func (s *AuthService) issueSession(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

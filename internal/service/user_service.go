package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

// Session is an issued access token.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// UserService registers users and issues session tokens.
type UserService struct {
	base
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
}

// NewUserService creates a new UserService.
func NewUserService(store storage.Store, authenticator auth.Authenticator, jwtManager *auth.JWTManager) *UserService {
	return &UserService{base: newBase(store), authenticator: authenticator, jwtManager: jwtManager}
}

// Register creates an account and signs the user in.
func (s *UserService) Register(ctx context.Context, email, displayName, password string) (*Session, error) {
	slog.Info("Register request received", "email", email)

	fields := map[string]string{}
	if !strings.Contains(email, "@") {
		fields["email"] = "The email must be a valid email address."
	}
	if strings.TrimSpace(displayName) == "" {
		fields["display_name"] = "The display name field is required."
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	user, err := s.authenticator.Register(ctx, email, displayName, password)
	if err != nil {
		slog.Warn("Register failed", "email", email, "error", err)
		return nil, err
	}

	slog.Info("User registered", "user_id", user.ID)
	return s.issue(user)
}

// Login verifies credentials and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		slog.Warn("Login failed", "email", email, "error", err)
		return nil, err
	}
	slog.Info("User logged in", "user_id", user.ID)
	return s.issue(user)
}

// UpdateProfileInput edits the caller's account. Nil fields are left
// unchanged. Changing the email or password requires CurrentPassword.
type UpdateProfileInput struct {
	DisplayName     *string
	Email           *string
	Password        *string
	CurrentPassword string
}

// UpdateProfile changes the caller's display name, email or password.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	slog.Info("UpdateProfile request received", "user_id", userID)

	credentialChange := in.Email != nil || in.Password != nil
	fields := map[string]string{}
	if in.DisplayName != nil && strings.TrimSpace(*in.DisplayName) == "" {
		fields["display_name"] = "The display name field is required."
	}
	if in.Email != nil && !strings.Contains(*in.Email, "@") {
		fields["email"] = "The email must be a valid email address."
	}
	if credentialChange && in.CurrentPassword == "" {
		fields["current_password"] = "The current password is required to change the email or password."
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if credentialChange {
		if err := s.authenticator.VerifyCredential(user, in.CurrentPassword); err != nil {
			slog.Warn("UpdateProfile rejected", "user_id", userID, "error", err)
			return nil, fieldError("current_password", "The current password is incorrect.")
		}
	}

	if in.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Email != nil {
		user.Email = auth.NormalizeEmail(*in.Email)
	}
	if in.Password != nil {
		if err := s.authenticator.SetCredential(user, *in.Password); err != nil {
			if errors.Is(err, auth.ErrWeakPassword) {
				return nil, fieldError("password", "The password must be at least 8 characters.")
			}
			return nil, err
		}
	}
	user.UpdatedAt = s.now()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fieldError("email", "The email has already been taken.")
		}
		return nil, err
	}

	slog.Info("Profile updated", "user_id", userID)
	return user, nil
}

// Current returns the user behind a session.
func (s *UserService) Current(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

func (s *UserService) issue(user *models.User) (*Session, error) {
	token, expires, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expires}, nil
}

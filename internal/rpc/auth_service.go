package rpc

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/middleware"
	"github.com/mmynk/fiambond/internal/service"
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	users *service.UserService
}

// NewAuthService creates a new authentication service.
func NewAuthService(users *service.UserService) *AuthService {
	return &AuthService{users: users}
}

// Register creates a new user account and signs it in.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[AuthResponse], error) {
	if req.Msg.Email == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	sess, err := s.users.Register(ctx, req.Msg.Email, req.Msg.DisplayName, req.Msg.Password)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&AuthResponse{User: sess.User, Token: sess.Token, ExpiresAt: sess.ExpiresAt}), nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[AuthResponse], error) {
	if req.Msg.Email == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	sess, err := s.users.Login(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&AuthResponse{User: sess.User, Token: sess.Token, ExpiresAt: sess.ExpiresAt}), nil
}

// GetCurrentUser returns the currently authenticated user.
func (s *AuthService) GetCurrentUser(ctx context.Context, _ *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	user, err := s.users.Current(ctx, userID)
	if err != nil {
		slog.Warn("GetCurrentUser failed", "user_id", userID, "error", err)
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetCurrentUserResponse{User: user}), nil
}

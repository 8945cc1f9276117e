package api

import (
	"net/http"

	"github.com/mmynk/fiambond/internal/service"
)

type updateUserRequest struct {
	DisplayName     *string `json:"display_name" validate:"omitempty,max=255"`
	Email           *string `json:"email" validate:"omitempty,email,max=255"`
	Password        *string `json:"password" validate:"omitempty,min=8"`
	CurrentPassword string  `json:"current_password"`
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.services.Users.Current(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.services.Users.UpdateProfile(r.Context(), callerID(r), service.UpdateProfileInput{
		DisplayName:     req.DisplayName,
		Email:           req.Email,
		Password:        req.Password,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

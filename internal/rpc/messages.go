package rpc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/models"
)

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *models.User `json:"user"`
}

// ScopeRequest names at most one of the three scope owners. With none set
// the caller's personal scope is used.
type ScopeRequest struct {
	UserID    string `json:"user_id,omitempty"`
	FamilyID  string `json:"family_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

type GetReportRequest struct {
	ScopeRequest
	Period string `json:"period"`
}

type GetReportResponse struct {
	Scope  models.Scope  `json:"scope"`
	Report ledger.Report `json:"report"`
}

type GetBalanceRequest struct {
	ScopeRequest
}

type GetBalanceResponse struct {
	Scope   models.Scope    `json:"scope"`
	Balance decimal.Decimal `json:"balance"`
}

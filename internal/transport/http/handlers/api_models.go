package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/portal-iam/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// UserSummary describes a minimal view of a user returned by the API.
// Password hashes and token hashes never leave the service.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address,omitempty"`
	Activated bool   `json:"activated"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Address:   user.Address,
		Activated: user.Activated,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the minted session token.
type LoginResponse struct {
	Token string `json:"token"`
}

// ValidateTokenResponse confirms the session token owner.
type ValidateTokenResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id"`
}

// CreateUserRequest defines the account creation payload.
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
}

// UpdateUserRequest defines the profile update payload.
type UpdateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
}

// ForgotPasswordRequest starts a password reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TokenPasswordRequest finalizes a reset or invite flow with a new password.
type TokenPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// InvoiceSummary describes an invoice returned by the API.
type InvoiceSummary struct {
	ID      string    `json:"id"`
	Amount  float64   `json:"amount"`
	Status  string    `json:"status"`
	DueDate time.Time `json:"due_date"`
}

func newInvoiceSummary(inv domain.Invoice) InvoiceSummary {
	return InvoiceSummary{
		ID:      inv.ID,
		Amount:  inv.Amount,
		Status:  string(inv.Status),
		DueDate: inv.DueDate,
	}
}

// PayInvoiceRequest carries the card details for paying an invoice.
type PayInvoiceRequest struct {
	Brand      string `json:"brand" binding:"required"`
	Number     string `json:"number" binding:"required"`
	HolderName string `json:"holder_name" binding:"required"`
	ExpiryMM   int    `json:"expiry_month" binding:"required"`
	ExpiryYY   int    `json:"expiry_year" binding:"required"`
	CVV        string `json:"cvv" binding:"required"`
}

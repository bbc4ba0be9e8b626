package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/portal-iam/internal/usecase"
)

// PasswordHandler exposes the reset and invite activation endpoints.
type PasswordHandler struct {
	credentials *usecase.CredentialService
}

// NewPasswordHandler constructs a PasswordHandler.
func NewPasswordHandler(credentials *usecase.CredentialService) *PasswordHandler {
	return &PasswordHandler{credentials: credentials}
}

// ForgotPassword issues a reset token and mails the reset link.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.credentials.SendResetPasswordEmail(c.Request.Context(), req.Email)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: "unable to send reset email"},
			{Err: usecase.ErrDeliveryFailure, Status: http.StatusBadGateway, Message: "unable to send reset email"},
		}, http.StatusInternalServerError, "unable to send reset email")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "reset email sent"})
}

// ResetPassword consumes a reset token and installs the new password.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	h.consumeToken(c, h.credentials.ResetPassword, "password updated")
}

// SetPassword consumes an invite token, setting the password and activating
// the account.
func (h *PasswordHandler) SetPassword(c *gin.Context) {
	h.consumeToken(c, h.credentials.SetPassword, "account activated")
}

func (h *PasswordHandler) consumeToken(c *gin.Context, consume func(ctx context.Context, token, password string) error, success string) {
	var req TokenPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := consume(c.Request.Context(), req.Token, req.Password); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest, Message: "invalid or expired token"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "unable to update password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: success})
}

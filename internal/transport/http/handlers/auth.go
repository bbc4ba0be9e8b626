package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/portal-iam/internal/transport/http/middleware"
	"github.com/ledgerline/portal-iam/internal/usecase"
)

// AuthHandler exposes login and session token validation endpoints.
type AuthHandler struct {
	credentials *usecase.CredentialService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(credentials *usecase.CredentialService) *AuthHandler {
	return &AuthHandler{credentials: credentials}
}

// Login authenticates a username/password pair and returns a session token.
// All credential failures share one message and status so responses reveal
// nothing about which half failed or whether the account exists.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	user, err := h.credentials.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.credentials.GenerateSessionToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "login failed"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token})
}

// ValidateToken confirms the bearer token accepted by the auth middleware.
func (h *AuthHandler) ValidateToken(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, ValidateTokenResponse{Valid: true, UserID: userID})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/transport/http/middleware"
	"github.com/ledgerline/portal-iam/internal/usecase"
)

// UserHandler exposes account creation and profile update endpoints.
type UserHandler struct {
	credentials *usecase.CredentialService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(credentials *usecase.CredentialService) *UserHandler {
	return &UserHandler{credentials: credentials}
}

// Create registers a new inactive account and mails the activation link.
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid user payload"))
		return
	}

	user, err := h.credentials.CreateUser(c.Request.Context(), domain.NewUserParams{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Address:   req.Address,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDuplicateAccount, Status: http.StatusConflict, Message: "email or username already in use"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "unable to create user")
		return
	}

	c.JSON(http.StatusCreated, newUserSummary(user))
}

// Update replaces the authenticated user's profile and password.
func (h *UserHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	// Users may only update their own profile.
	if pathID := c.Param("id"); pathID != "" && pathID != userID {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "cannot update another user"))
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid user payload"))
		return
	}

	user, err := h.credentials.UpdateUser(c.Request.Context(), userID, domain.ProfileUpdate{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Address:   req.Address,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
			{Err: usecase.ErrDuplicateAccount, Status: http.StatusConflict, Message: "email or username already in use"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "unable to update user")
		return
	}

	c.JSON(http.StatusOK, newUserSummary(user))
}

// ResendInvite mails a fresh activation link for an account that has not
// activated yet.
func (h *UserHandler) ResendInvite(c *gin.Context) {
	err := h.credentials.ResendInvite(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
			{Err: usecase.ErrAlreadyActivated, Status: http.StatusConflict, Message: "account already activated"},
			{Err: usecase.ErrDeliveryFailure, Status: http.StatusBadGateway, Message: "unable to send activation email"},
		}, http.StatusInternalServerError, "unable to resend invite")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "invite sent"})
}

package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/transport/http/middleware"
	"github.com/ledgerline/portal-iam/internal/usecase"
)

// InvoiceHandler exposes the authenticated invoice portal endpoints.
type InvoiceHandler struct {
	invoices *usecase.InvoiceService
}

// NewInvoiceHandler constructs an InvoiceHandler.
func NewInvoiceHandler(invoices *usecase.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// List returns the caller's invoices. An optional status query parameter
// filters results, with an optional comparison operator.
func (h *InvoiceHandler) List(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var filter *port.InvoiceFilter
	if status := c.Query("status"); status != "" {
		filter = &port.InvoiceFilter{
			Status:   domain.InvoiceStatus(status),
			Operator: c.DefaultQuery("operator", "="),
		}
	}

	invoices, err := h.invoices.List(c.Request.Context(), userID, filter)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidInvoiceFilter, Status: http.StatusBadRequest, Message: "invalid invoice filter"},
		}, http.StatusInternalServerError, "unable to list invoices")
		return
	}

	summaries := make([]InvoiceSummary, 0, len(invoices))
	for _, inv := range invoices {
		summaries = append(summaries, newInvoiceSummary(inv))
	}
	c.JSON(http.StatusOK, summaries)
}

// Pay charges the supplied card and marks the caller's invoice paid.
func (h *InvoiceHandler) Pay(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PayInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payment payload"))
		return
	}

	err := h.invoices.Pay(c.Request.Context(), userID, c.Param("id"), domain.PaymentCard{
		Brand:      req.Brand,
		Number:     req.Number,
		HolderName: req.HolderName,
		ExpiryMM:   req.ExpiryMM,
		ExpiryYY:   req.ExpiryYY,
		CVV:        req.CVV,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvoiceNotFound, Status: http.StatusNotFound, Message: "invoice not found"},
			{Err: usecase.ErrInvalidPaymentBrand, Status: http.StatusBadRequest, Message: "unsupported card brand"},
			{Err: usecase.ErrPaymentDeclined, Status: http.StatusPaymentRequired, Message: "payment declined"},
		}, http.StatusInternalServerError, "unable to pay invoice")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "invoice paid"})
}

// Receipt streams the receipt document for the caller's invoice.
func (h *InvoiceHandler) Receipt(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	reader, err := h.invoices.Receipt(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvoiceNotFound, Status: http.StatusNotFound, Message: "invoice not found"},
			{Err: usecase.ErrReceiptNotFound, Status: http.StatusNotFound, Message: "receipt not found"},
		}, http.StatusInternalServerError, "unable to load receipt")
		return
	}
	defer reader.Close()

	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		// Headers are already written; nothing more to send to the client.
		_ = c.Error(err)
	}
}

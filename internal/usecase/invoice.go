package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/repository"
)

var (
	// ErrInvoiceNotFound indicates no invoice matches the identifier for this user.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvalidPaymentBrand rejects card brands outside the allow-list.
	ErrInvalidPaymentBrand = errors.New("unsupported card brand")
	// ErrPaymentDeclined indicates the provider rejected the charge.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrReceiptNotFound indicates the invoice has no stored receipt document.
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrInvalidInvoiceFilter rejects listing filters with an unknown operator.
	ErrInvalidInvoiceFilter = errors.New("invalid invoice filter")
)

// Card brands double as provider host names, so only known values may pass.
var allowedBrands = map[string]struct{}{
	"visa":       {},
	"mastercard": {},
	"amex":       {},
	"paypal":     {},
}

// InvoiceService exposes the invoice portal operations: listing, payment,
// and receipt retrieval. Every operation is scoped to the requesting user.
type InvoiceService struct {
	invoices port.InvoiceStore
	gateway  port.PaymentGateway
	receipts port.ReceiptStore
	logger   *zap.Logger
}

// NewInvoiceService constructs an InvoiceService.
func NewInvoiceService(invoices port.InvoiceStore, gateway port.PaymentGateway, receipts port.ReceiptStore, log *zap.Logger) *InvoiceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &InvoiceService{invoices: invoices, gateway: gateway, receipts: receipts, logger: log}
}

// List returns the user's invoices, optionally filtered by status.
func (s *InvoiceService) List(ctx context.Context, userID string, filter *port.InvoiceFilter) ([]domain.Invoice, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if filter != nil {
		if _, err := filter.NormalizedOperator(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInvoiceFilter, err)
		}
	}

	invoices, err := s.invoices.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// Pay charges the card with the brand's provider and marks the invoice paid.
func (s *InvoiceService) Pay(ctx context.Context, userID, invoiceID string, card domain.PaymentCard) error {
	invoice, err := s.ownedInvoice(ctx, userID, invoiceID)
	if err != nil {
		return err
	}

	brand := strings.ToLower(strings.TrimSpace(card.Brand))
	if _, ok := allowedBrands[brand]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentBrand, card.Brand)
	}
	card.Brand = brand

	if err := s.gateway.Charge(ctx, card, invoice.Amount); err != nil {
		s.logger.Warn("invoice payment failed",
			zap.String("invoice_id", invoice.ID),
			zap.String("brand", brand),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
	}

	if err := s.invoices.MarkPaid(ctx, invoice.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvoiceNotFound
		}
		return fmt.Errorf("mark invoice paid: %w", err)
	}

	return nil
}

// Receipt streams the receipt document for the user's invoice. Receipt names
// are reduced to their base name so lookups cannot escape the receipt store.
func (s *InvoiceService) Receipt(ctx context.Context, userID, invoiceID string) (io.ReadCloser, error) {
	invoice, err := s.ownedInvoice(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.ReceiptName == nil || strings.TrimSpace(*invoice.ReceiptName) == "" {
		return nil, ErrReceiptNotFound
	}

	name := filepath.Base(strings.TrimSpace(*invoice.ReceiptName))
	reader, err := s.receipts.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReceiptNotFound, err)
	}
	return reader, nil
}

func (s *InvoiceService) ownedInvoice(ctx context.Context, userID, invoiceID string) (*domain.Invoice, error) {
	userID = strings.TrimSpace(userID)
	invoiceID = strings.TrimSpace(invoiceID)
	if userID == "" || invoiceID == "" {
		return nil, ErrInvoiceNotFound
	}

	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("lookup invoice: %w", err)
	}

	// Ownership checks fold into not-found so invoice IDs stay unguessable.
	if invoice.UserID != userID {
		return nil, ErrInvoiceNotFound
	}

	return invoice, nil
}

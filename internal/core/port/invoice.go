package port

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ledgerline/portal-iam/internal/core/domain"
)

// ErrUnsupportedOperator rejects status filters using a comparison operator
// outside the allow-list.
var ErrUnsupportedOperator = errors.New("unsupported comparison operator")

// The operator ends up interpolated into SQL by the store, so nothing outside
// this set may pass through.
var allowedOperators = map[string]struct{}{
	"=":    {},
	"<>":   {},
	">":    {},
	"<":    {},
	">=":   {},
	"<=":   {},
	"LIKE": {},
}

// InvoiceFilter narrows invoice listings to a billing state. Operator must be
// one of the allow-listed comparison operators.
type InvoiceFilter struct {
	Status   domain.InvoiceStatus
	Operator string
}

// NormalizedOperator returns the filter's comparison operator, defaulting to
// equality when unset.
func (f InvoiceFilter) NormalizedOperator() (string, error) {
	op := f.Operator
	if op == "" {
		op = "="
	}
	if _, ok := allowedOperators[op]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
	return op, nil
}

// InvoiceStore exposes persistence behavior for invoices.
type InvoiceStore interface {
	ListByUser(ctx context.Context, userID string, filter *InvoiceFilter) ([]domain.Invoice, error)
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	MarkPaid(ctx context.Context, id string) error
}

// PaymentGateway charges a card with the brand's payment provider.
type PaymentGateway interface {
	Charge(ctx context.Context, card domain.PaymentCard, amount float64) error
}

// ReceiptStore retrieves stored receipt documents by file name.
type ReceiptStore interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

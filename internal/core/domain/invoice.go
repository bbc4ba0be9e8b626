package domain

import "time"

// InvoiceStatus enumerates billing states for an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// Invoice mirrors the persisted representation in the invoices table.
type Invoice struct {
	ID          string
	UserID      string
	Amount      float64
	Status      InvoiceStatus
	DueDate     time.Time
	ReceiptName *string
	CreatedAt   time.Time
}

// PaymentCard carries card details forwarded to the payment provider.
// The card number is never persisted or logged.
type PaymentCard struct {
	Brand      string
	Number     string
	HolderName string
	ExpiryMM   int
	ExpiryYY   int
	CVV        string
}

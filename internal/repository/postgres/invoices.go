package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/repository"
)

var invoiceColumns = []string{
	"id",
	"user_id",
	"amount",
	"status",
	"due_date",
	"receipt_name",
	"created_at",
}

// InvoiceRepository implements port.InvoiceStore using PostgreSQL.
type InvoiceRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewInvoiceRepository wires a PostgreSQL-backed invoice repository.
func NewInvoiceRepository(db pgExecutor) *InvoiceRepository {
	return &InvoiceRepository{
		exec:    db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&inv.Amount,
		&inv.Status,
		&inv.DueDate,
		&inv.ReceiptName,
		&inv.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return &inv, nil
}

// ListByUser returns the user's invoices, optionally narrowed by a status
// comparison. The status value is always bound as a parameter; only the
// operator comes from the allow-list.
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string, filter *port.InvoiceFilter) ([]domain.Invoice, error) {
	query := r.builder.
		Select(invoiceColumns...).
		From("portal.invoices").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("due_date ASC")

	if filter != nil {
		op, err := filter.NormalizedOperator()
		if err != nil {
			return nil, err
		}
		query = query.Where(fmt.Sprintf("status %s ?", op), string(filter.Status))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list invoices sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}

	return invoices, nil
}

// GetByID retrieves an invoice by identifier.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	stmt, args, err := r.builder.
		Select(invoiceColumns...).
		From("portal.invoices").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select invoice sql: %w", err)
	}

	return scanInvoice(r.exec.QueryRow(ctx, stmt, args...))
}

// MarkPaid transitions an invoice to the paid state.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("portal.invoices").
		Set("status", domain.InvoiceStatusPaid).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark paid sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.InvoiceStore = (*InvoiceRepository)(nil)

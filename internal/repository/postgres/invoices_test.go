package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/repository"
)

func newInvoiceRepoMock(t *testing.T) (pgxmock.PgxPoolIface, *InvoiceRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewInvoiceRepository(mock)
}

func invoiceRow(inv domain.Invoice) *pgxmock.Rows {
	return pgxmock.NewRows(invoiceColumns).AddRow(
		inv.ID,
		inv.UserID,
		inv.Amount,
		inv.Status,
		inv.DueDate,
		inv.ReceiptName,
		inv.CreatedAt,
	)
}

func TestInvoiceRepository_ListByUser(t *testing.T) {
	mock, repo := newInvoiceRepoMock(t)

	now := time.Now().UTC()
	inv := domain.Invoice{
		ID:        "inv-1",
		UserID:    "user-1",
		Amount:    149.90,
		Status:    domain.InvoiceStatusPending,
		DueDate:   now.Add(72 * time.Hour),
		CreatedAt: now,
	}

	mock.ExpectQuery(`SELECT .*FROM portal\.invoices WHERE user_id = \$1 ORDER BY due_date ASC`).
		WithArgs("user-1").
		WillReturnRows(invoiceRow(inv))

	invoices, err := repo.ListByUser(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(invoices) != 1 || invoices[0].ID != "inv-1" {
		t.Fatalf("unexpected result: %+v", invoices)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInvoiceRepository_ListByUserStatusFilter(t *testing.T) {
	mock, repo := newInvoiceRepoMock(t)

	// The operator is interpolated from the allow-list; the status value
	// stays a bound parameter.
	mock.ExpectQuery(`SELECT .*FROM portal\.invoices WHERE user_id = \$1 AND status <> \$2`).
		WithArgs("user-1", "paid").
		WillReturnRows(pgxmock.NewRows(invoiceColumns))

	_, err := repo.ListByUser(context.Background(), "user-1", &port.InvoiceFilter{
		Status:   domain.InvoiceStatusPaid,
		Operator: "<>",
	})
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInvoiceRepository_ListByUserRejectsOperator(t *testing.T) {
	_, repo := newInvoiceRepoMock(t)

	_, err := repo.ListByUser(context.Background(), "user-1", &port.InvoiceFilter{
		Status:   domain.InvoiceStatusPaid,
		Operator: "= paid; DELETE FROM portal.invoices; --",
	})
	if !errors.Is(err, port.ErrUnsupportedOperator) {
		t.Fatalf("expected ErrUnsupportedOperator, got %v", err)
	}
}

func TestInvoiceRepository_GetByID(t *testing.T) {
	mock, repo := newInvoiceRepoMock(t)

	mock.ExpectQuery(`SELECT .*FROM portal\.invoices WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(invoiceColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvoiceRepository_MarkPaid(t *testing.T) {
	mock, repo := newInvoiceRepoMock(t)

	mock.ExpectExec(`UPDATE portal\.invoices SET status = \$1 WHERE id = \$2`).
		WithArgs(domain.InvoiceStatusPaid, "inv-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.MarkPaid(context.Background(), "inv-1"); err != nil {
		t.Fatalf("MarkPaid returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE portal\.invoices SET status = \$1 WHERE id = \$2`).
		WithArgs(domain.InvoiceStatusPaid, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkPaid(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rrstones/storefront/internal/domain/invoice"
)

const (
	saveInvoiceSQL = `INSERT INTO invoices (number, order_id, issue_date, document)
		VALUES ($1, $2, $3, $4)`

	getInvoiceSQL = `SELECT document FROM invoices WHERE number = $1`
)

var _ invoice.Repository = (*InvoiceRepository)(nil)

// InvoiceRepository implements invoice.Repository backed by PostgreSQL.
// Invoices are immutable snapshots, so the whole document is stored as
// JSONB with the number and order reference lifted out for lookups.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns an InvoiceRepository that uses the given pool.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// Save persists a new invoice document. Invoices are write-once; a duplicate
// number is a storage error, never an update.
func (r *InvoiceRepository) Save(ctx context.Context, inv *invoice.Invoice) error {
	doc, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshaling invoice %q: %w", inv.Number, err)
	}

	_, err = r.pool.Exec(ctx, saveInvoiceSQL, inv.Number, inv.OrderID, inv.IssueDate, doc)
	if err != nil {
		return fmt.Errorf("saving invoice %q: %w", inv.Number, err)
	}
	return nil
}

// GetByNumber returns the stored invoice document.
func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, getInvoiceSQL, number).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}
		return nil, fmt.Errorf("getting invoice %q: %w", number, err)
	}

	var inv invoice.Invoice
	if err := json.Unmarshal(doc, &inv); err != nil {
		return nil, fmt.Errorf("unmarshaling invoice %q: %w", number, err)
	}
	return &inv, nil
}

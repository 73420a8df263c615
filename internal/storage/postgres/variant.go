package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rrstones/storefront/internal/domain/catalog"
)

const (
	listVariantsSQL = `SELECT id, product_name, size, pieces_per_crate, unit_price, weight_per_piece, stock_pieces
		FROM variants ORDER BY product_name, size`

	getVariantByIDSQL = `SELECT id, product_name, size, pieces_per_crate, unit_price, weight_per_piece, stock_pieces
		FROM variants WHERE id = $1`

	getVariantsByIDsSQL = `SELECT id, product_name, size, pieces_per_crate, unit_price, weight_per_piece, stock_pieces
		FROM variants WHERE id = ANY($1)`

	upsertVariantSQL = `INSERT INTO variants (id, product_name, size, pieces_per_crate, unit_price, weight_per_piece, stock_pieces)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			product_name = EXCLUDED.product_name,
			size = EXCLUDED.size,
			pieces_per_crate = EXCLUDED.pieces_per_crate,
			unit_price = EXCLUDED.unit_price,
			weight_per_piece = EXCLUDED.weight_per_piece,
			stock_pieces = EXCLUDED.stock_pieces`
)

var _ catalog.Repository = (*VariantRepository)(nil)

// VariantRepository implements catalog.Repository backed by PostgreSQL.
type VariantRepository struct {
	pool *pgxpool.Pool
}

// NewVariantRepository returns a VariantRepository that uses the given pool.
func NewVariantRepository(pool *pgxpool.Pool) *VariantRepository {
	return &VariantRepository{pool: pool}
}

// List returns the whole variant catalog ordered by product and size.
func (r *VariantRepository) List(ctx context.Context) ([]catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, listVariantsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	return pgx.CollectRows(rows, scanVariant)
}

// GetByID returns a single variant by its identifier.
func (r *VariantRepository) GetByID(ctx context.Context, id string) (*catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}
	return &v, nil
}

// GetByIDs returns variants matching any of the given IDs.
func (r *VariantRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting variants by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanVariant)
}

// Upsert inserts or replaces a variant row. Used by the seeding and price
// list ingest commands.
func (r *VariantRepository) Upsert(ctx context.Context, v *catalog.Variant) error {
	_, err := r.pool.Exec(ctx, upsertVariantSQL,
		v.ID, v.ProductName, v.Size, v.PiecesPerCrate,
		v.UnitPrice, v.WeightPerPiece, v.StockPieces,
	)
	if err != nil {
		return fmt.Errorf("upserting variant %q: %w", v.ID, err)
	}
	return nil
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var (
		v     catalog.Variant
		price decimal.Decimal
		wpp   decimal.Decimal
	)
	err := row.Scan(
		&v.ID, &v.ProductName, &v.Size, &v.PiecesPerCrate,
		&price, &wpp, &v.StockPieces,
	)
	v.UnitPrice = price
	v.WeightPerPiece = wpp
	return v, err
}

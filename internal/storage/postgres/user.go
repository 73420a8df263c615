package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rrstones/storefront/internal/domain/identity"
)

const getUserByKeyHashSQL = `SELECT u.id, u.name, u.email, u.phone, u.tier,
		u.street, u.city, u.state, u.pincode
	FROM api_keys k
	JOIN users u ON u.id = k.user_id
	WHERE k.key_hash = $1 AND k.active = TRUE`

var _ identity.Repository = (*UserRepository)(nil)

// UserRepository provides credential-based user lookups backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByKeyHash resolves the user behind an active API key hash.
func (r *UserRepository) FindByKeyHash(ctx context.Context, keyHash string) (*identity.User, error) {
	var u identity.User
	err := r.pool.QueryRow(ctx, getUserByKeyHashSQL, keyHash).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.Tier,
		&u.Address.Street, &u.Address.City, &u.Address.State, &u.Address.Pincode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUnknownKey
		}
		return nil, fmt.Errorf("finding user by key hash: %w", err)
	}
	return &u, nil
}

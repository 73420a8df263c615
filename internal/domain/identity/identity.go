// Package identity defines who is making cart requests. The cart core never
// reaches into ambient state for the current user: it is handed a Provider at
// construction and asks it explicitly on every operation.
package identity

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrAuthenticationRequired is returned for any cart mutation attempted
// without an authenticated identity. The caller surfaces it as a login prompt;
// no cart state is touched.
var ErrAuthenticationRequired = errors.New("authentication required")

// Address is a denormalized postal address block, used on invoices.
type Address struct {
	Street  string
	City    string
	State   string
	Pincode string
}

// User holds the identity attributes the cart core needs: a stable ID for
// persistence keys, a tier for discount resolution, and contact details for
// invoice buyer blocks.
type User struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Tier    string
	Address Address
}

// Provider resolves the user behind a request context. Implementations return
// ErrAuthenticationRequired when no identity is present.
type Provider interface {
	UserFromContext(ctx context.Context) (*User, error)
}

type userKey struct{}

// WithUser returns a context carrying the given user. The HTTP security layer
// calls this after validating credentials.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// ContextProvider reads the user previously stored with WithUser. It is the
// production Provider: authentication happens once at the transport boundary
// and the resolved identity travels with the request.
type ContextProvider struct{}

func (ContextProvider) UserFromContext(ctx context.Context) (*User, error) {
	u, ok := ctx.Value(userKey{}).(*User)
	if !ok || u == nil {
		return nil, ErrAuthenticationRequired
	}
	return u, nil
}

// ErrUnknownKey is returned when no active credential matches the presented
// API key.
var ErrUnknownKey = errors.New("unknown api key")

// Repository resolves users from credentials. Keys are stored and looked up
// as HMAC-SHA256 hashes; plain keys never reach storage.
type Repository interface {
	FindByKeyHash(ctx context.Context, keyHash string) (*User, error)
}

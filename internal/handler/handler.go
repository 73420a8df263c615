// Package handler exposes the storefront domain over HTTP. Handlers decode
// requests, delegate to domain services, and map domain errors to status
// codes; no business rules live here.
package handler

import (
	"net/http"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/catalog"
	"github.com/rrstones/storefront/internal/domain/checkout"
	"github.com/rrstones/storefront/internal/domain/invoice"
	"github.com/rrstones/storefront/internal/domain/shipping"
)

// Handler carries the domain dependencies shared by all routes.
type Handler struct {
	variants catalog.Repository
	carts    *cart.Service
	checkout *checkout.Service
	invoices invoice.Repository
	calc     *cart.Calculator
	shipping *shipping.Validator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	variants catalog.Repository,
	carts *cart.Service,
	co *checkout.Service,
	invoices invoice.Repository,
	calc *cart.Calculator,
	ship *shipping.Validator,
) *Handler {
	return &Handler{
		variants: variants,
		carts:    carts,
		checkout: co,
		invoices: invoices,
		calc:     calc,
		shipping: ship,
	}
}

// Register mounts all API routes on mux. Routes touching per-user state are
// wrapped with authn; catalog browsing and price previews stay public.
func (h *Handler) Register(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/variants", h.ListVariants)
	mux.HandleFunc("GET /api/variants/{variantID}", h.GetVariant)
	mux.HandleFunc("POST /api/pricing/quote", h.QuotePrice)
	mux.HandleFunc("POST /api/shipping/check", h.CheckShipping)

	private := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authn(fn))
	}

	private("GET /api/cart", h.GetCart)
	private("POST /api/cart/items", h.AddCartItem)
	private("PUT /api/cart/items/{variantID}", h.UpdateCartItem)
	private("DELETE /api/cart/items/{variantID}", h.RemoveCartItem)
	private("DELETE /api/cart", h.ClearCart)

	private("POST /api/checkout/reserve", h.Reserve)
	private("POST /api/checkout/cancel", h.CancelCheckout)
	private("POST /api/checkout/complete", h.CompleteCheckout)
	private("GET /api/checkout/countdown", h.Countdown)

	private("GET /api/invoices/{number}", h.GetInvoice)
	private("GET /api/invoices/{number}/print", h.PrintInvoice)
}

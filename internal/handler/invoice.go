package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rrstones/storefront/internal/domain/invoice"
)

// GetInvoice returns the stored invoice document as JSON.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.GetByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	// The invoice struct carries full json tags; the stored document is
	// returned as-is rather than re-encoded field by field.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(inv)
}

// PrintInvoice renders the printable HTML representation.
func (h *Handler) PrintInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.GetByNumber(r.Context(), r.PathValue("number"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Render into a buffer first so a template failure still yields a clean
	// error response instead of a half-written page.
	var buf bytes.Buffer
	if err := invoice.Render(&buf, inv); err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

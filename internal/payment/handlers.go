package payment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/invoice"
)

// Handler exposes payment endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the payment endpoints under an invoice scope.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/invoices/{id}/payment-intent", h.CreateIntent)
	r.Post("/invoices/{id}/payment-confirm", h.Confirm)
}

// CreateIntent opens an intent for an invoice.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInvoiceID(w, r)
	if !ok {
		return
	}
	resp, err := h.Svc.CreateIntent(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, resp)
}

// Confirm marks an invoice as collected and returns the updated shipment.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseInvoiceID(w, r)
	if !ok {
		return
	}
	rec, err := h.Svc.Confirm(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rec)
}

func parseInvoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invoice id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func respondError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	if errors.Is(err, invoice.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

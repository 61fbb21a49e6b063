package invoice

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/shipment"
)

// Handler exposes invoice issuing and retrieval endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the invoice endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/shipments/{id}/invoice", h.Issue)
	r.Get("/invoices/{id}", h.Get)
}

// Issue generates (or returns the existing) invoice for a shipment.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	shipmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid shipment id", nil)
		return
	}
	rec, err := h.Svc.Issue(r.Context(), shipmentID)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, rec)
}

// Get returns one issued invoice.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invoice id", nil)
		return
	}
	rec, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rec)
}

func respondError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "invoice not found", nil)
	case errors.Is(err, shipment.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "shipment not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}

package shipment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-freight/internal/common"
)

// Handler exposes shipment intake and lifecycle endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the customer-facing shipment endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/quote", h.Quote)
}

// AdminRoutes mounts the back-office endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Patch("/{id}/status", h.UpdateStatus)
}

// Create registers a new shipment.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	rec, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, rec)
}

// Get returns one shipment with its latest quote snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rec)
}

// Quote reprices the stored parcels and returns the updated record.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := h.Svc.Quote(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rec)
}

// UpdateStatus applies one lifecycle transition.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	status, err := ParseStatus(payload.Status)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	rec, err := h.Svc.UpdateStatus(r.Context(), id, status)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rec)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid shipment id", nil)
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
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "shipment not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-freight/internal/common"
)

// Handler exposes the priced catalog over HTTP: public read endpoints for the
// quote form and admin CRUD for rate management.
type Handler struct {
	Svc *Service
}

// Routes mounts the public catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Get("/packaging", h.ListPackaging)
	r.Get("/provinces", h.ListProvinces)
}

// AdminRoutes mounts the rate-management endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/categories", h.CreateCategory)
	r.Put("/categories/{id}", h.UpdateCategory)
	r.Post("/packaging", h.CreatePackaging)
	r.Put("/packaging/{id}", h.UpdatePackaging)
	r.Put("/provinces/{code}", h.UpsertProvince)
}

// ListCategories returns every commodity category with its rate.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.ListCategories(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// ListPackaging returns every packaging option.
func (h *Handler) ListPackaging(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.ListPackaging(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// ListProvinces returns every province rate including inactive rows.
func (h *Handler) ListProvinces(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.ListProvinces(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// CreateCategory inserts a commodity category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	created, err := h.Svc.CreateCategory(r.Context(), payload)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, created)
}

// UpdateCategory updates a commodity category by id.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var payload CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	updated, err := h.Svc.UpdateCategory(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, updated)
}

// CreatePackaging inserts a packaging option.
func (h *Handler) CreatePackaging(w http.ResponseWriter, r *http.Request) {
	var payload PackagingInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	created, err := h.Svc.CreatePackaging(r.Context(), payload)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, created)
}

// UpdatePackaging updates a packaging option by id.
func (h *Handler) UpdatePackaging(w http.ResponseWriter, r *http.Request) {
	var payload PackagingInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	updated, err := h.Svc.UpdatePackaging(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, updated)
}

// UpsertProvince replaces the inland rate for a province code.
func (h *Handler) UpsertProvince(w http.ResponseWriter, r *http.Request) {
	var payload ProvinceInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Code = chi.URLParam(r, "code")
	updated, err := h.Svc.UpsertProvince(r.Context(), payload)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, updated)
}

func respondError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

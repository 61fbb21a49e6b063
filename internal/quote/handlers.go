package quote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/backend-freight/internal/common"
)

// Handler exposes the live pricing endpoint.
type Handler struct {
	Svc *Service
}

// Create prices a shipment payload and returns the full breakdown.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	result, err := h.Svc.Quote(r.Context(), req)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

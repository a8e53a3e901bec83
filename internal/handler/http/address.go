package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/pkg/httputil"
	"github.com/utafrali/servicehub/pkg/validator"
)

// AddressService is the address book as seen by the HTTP layer.
type AddressService interface {
	List(ctx context.Context, owner domain.Owner) ([]domain.Address, error)
	Create(ctx context.Context, owner domain.Owner, in domain.AddressInput) (*domain.Address, error)
	Update(ctx context.Context, owner domain.Owner, id int64, in domain.AddressInput) (*domain.Address, error)
	Delete(ctx context.Context, owner domain.Owner, id int64) error
}

// AddressHandler handles HTTP requests for the caller's address book.
type AddressHandler struct {
	service AddressService
	logger  *slog.Logger
}

// NewAddressHandler creates a new address HTTP handler.
func NewAddressHandler(svc AddressService, logger *slog.Logger) *AddressHandler {
	return &AddressHandler{service: svc, logger: logger}
}

// AddressRequest is the JSON body for creating or replacing an address.
type AddressRequest struct {
	Kind      string `json:"kind" validate:"notblank,max=50"`
	Line      string `json:"line" validate:"notblank,max=500"`
	City      string `json:"city" validate:"notblank,max=200"`
	IsDefault bool   `json:"is_default"`
}

func (req AddressRequest) input() domain.AddressInput {
	return domain.AddressInput{
		Kind:      req.Kind,
		Line:      req.Line,
		City:      req.City,
		IsDefault: req.IsDefault,
	}
}

// List handles GET /api/address
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	addresses, err := h.service.List(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, addresses)
}

// Create handles POST /api/address
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	var req AddressRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	address, err := h.service.Create(r.Context(), owner, req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, address)
}

// Update handles PUT /api/address/{id}
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req AddressRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	address, err := h.service.Update(r.Context(), owner, id, req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, address)
}

// Delete handles DELETE /api/address/{id}
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), owner, id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
}

// decode reads and validates a JSON body into dst. It writes the 400 itself
// and returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any, l *slog.Logger) bool {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, err, l)
		return false
	}
	httputil.WriteBadRequest(w, r, "invalid request body")
	return false
}

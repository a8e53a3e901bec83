package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/pkg/httputil"
	"github.com/utafrali/servicehub/pkg/validator"
)

// AccountService registers, authenticates and describes accounts.
type AccountService interface {
	Register(ctx context.Context, kind domain.AccountKind, reg domain.Registration) (*domain.AuthToken, error)
	Login(ctx context.Context, kind domain.AccountKind, email, password string) (*domain.AuthToken, error)
	Me(ctx context.Context, owner domain.Owner) (*domain.Profile, error)
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service AccountService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON body for both sign-up forms. ICNumber is
// required for providers only; the service enforces that.
type RegisterRequest struct {
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8"`
	Name         string  `json:"name" validate:"notblank,max=100"`
	Phone        string  `json:"phone" validate:"omitempty,max=20"`
	ICNumber     string  `json:"ic_number" validate:"omitempty,max=20"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,max=500"`
}

// LoginRequest is the JSON body for login. Username is accepted as an alias
// for email so password-grant form clients keep working.
type LoginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"required_without=Username"`
	Password string `json:"password" validate:"required"`
}

func (req LoginRequest) login() string {
	if req.Email != "" {
		return req.Email
	}
	return req.Username
}

// --- Handlers ---

// Register returns the handler for POST /api/auth/{kind}/register
func (h *AuthHandler) Register(kind domain.AccountKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if !decode(w, r, &req, h.logger) {
			return
		}

		token, err := h.service.Register(r.Context(), kind, domain.Registration{
			Email:        req.Email,
			Password:     req.Password,
			Name:         req.Name,
			Phone:        req.Phone,
			ICNumber:     req.ICNumber,
			ProfileImage: req.ProfileImage,
		})
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteData(w, http.StatusCreated, token)
	}
}

// Login returns the handler for POST /api/auth/{kind}/login. Both JSON and
// form-encoded bodies are accepted.
func (h *AuthHandler) Login(kind domain.AccountKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
			if err := r.ParseForm(); err != nil {
				httputil.WriteBadRequest(w, r, "invalid form body")
				return
			}
			req = LoginRequest{
				Username: r.PostForm.Get("username"),
				Email:    r.PostForm.Get("email"),
				Password: r.PostForm.Get("password"),
			}
			if err := validator.Validate(req); err != nil {
				httputil.WriteError(w, r, err, h.logger)
				return
			}
		} else if !decode(w, r, &req, h.logger) {
			return
		}

		token, err := h.service.Login(r.Context(), kind, req.login(), req.Password)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		httputil.WriteData(w, http.StatusOK, token)
	}
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Me(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, profile)
}

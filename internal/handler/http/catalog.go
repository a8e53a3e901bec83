package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/pkg/httputil"
	"github.com/utafrali/servicehub/pkg/pagination"
)

// reviewDateLayout is how review dates are rendered.
const reviewDateLayout = "2006-01-02"

// CatalogService serves the public catalog.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ServicesByCategory(ctx context.Context, path string) ([]domain.Service, error)
	ServiceDetail(ctx context.Context, id int64) (*domain.ServiceDetail, error)
	Reviews(ctx context.Context, serviceID int64) ([]domain.Review, error)
	Search(ctx context.Context, query string, page pagination.Params) ([]domain.Service, int, error)
}

// CatalogHandler handles HTTP requests for categories, services and reviews.
type CatalogHandler struct {
	service CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: svc, logger: logger}
}

// --- Response DTOs ---

// CategoryResponse is one entry of the category list.
type CategoryResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Icon     string `json:"icon"`
	Services string `json:"services"`
}

// ProviderResponse is the provider card of a service.
type ProviderResponse struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Role  string `json:"role"`
}

// ServiceResponse is a service as listed under a category or in search.
type ServiceResponse struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Price         float64          `json:"price"`
	OriginalPrice float64          `json:"originalPrice"`
	Rating        int              `json:"rating"`
	Reviews       int              `json:"reviews"`
	Provider      ProviderResponse `json:"provider"`
	Image         string           `json:"image"`
}

// CategoryRef names the category of a service.
type CategoryRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ReviewResponse is one customer review.
type ReviewResponse struct {
	ID         int64  `json:"id"`
	UserName   string `json:"userName"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
	Date       string `json:"date"`
	UserAvatar string `json:"userAvatar"`
}

// ServiceDetailResponse is a single service page.
type ServiceDetailResponse struct {
	ID            int64            `json:"id"`
	Category      CategoryRef      `json:"category"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Price         float64          `json:"price"`
	OriginalPrice float64          `json:"originalPrice"`
	Rating        int              `json:"rating"`
	TotalReviews  int              `json:"totalReviews"`
	Provider      ProviderResponse `json:"provider"`
	Image         string           `json:"image"`
	Reviews       []ReviewResponse `json:"reviews"`
}

func toCategoryResponse(c domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:       c.ID,
		Name:     c.Name,
		Path:     c.Path,
		Icon:     c.Icon,
		Services: strconv.Itoa(c.ServiceCount) + " Services",
	}
}

func toServiceResponse(s domain.Service) ServiceResponse {
	return ServiceResponse{
		ID:            s.ID,
		Title:         s.Title,
		Description:   s.Description,
		Price:         s.Price,
		OriginalPrice: s.OriginalPrice,
		Rating:        s.Rating,
		Reviews:       s.ReviewCount,
		Provider:      ProviderResponse(s.Provider),
		Image:         s.Image,
	}
}

func toServiceResponses(services []domain.Service) []ServiceResponse {
	out := make([]ServiceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, toServiceResponse(s))
	}
	return out
}

func toReviewResponses(reviews []domain.Review) []ReviewResponse {
	out := make([]ReviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, ReviewResponse{
			ID:         rv.ID,
			UserName:   rv.UserName,
			Rating:     rv.Rating,
			Comment:    rv.Comment,
			Date:       rv.Date.Format(reviewDateLayout),
			UserAvatar: rv.UserAvatar,
		})
	}
	return out
}

// --- Handlers ---

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// ServicesByCategory handles GET /api/categories/{path}/services
func (h *CatalogHandler) ServicesByCategory(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ServicesByCategory(r.Context(), chi.URLParam(r, "path"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toServiceResponses(services))
}

// GetService handles GET /api/services/{id}
func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	detail, err := h.service.ServiceDetail(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	s := detail.Service
	httputil.WriteData(w, http.StatusOK, ServiceDetailResponse{
		ID:            s.ID,
		Category:      CategoryRef{Name: detail.Category.Name, Path: detail.Category.Path},
		Title:         s.Title,
		Description:   s.Description,
		Price:         s.Price,
		OriginalPrice: s.OriginalPrice,
		Rating:        s.Rating,
		TotalReviews:  s.ReviewCount,
		Provider:      ProviderResponse(s.Provider),
		Image:         s.Image,
		Reviews:       toReviewResponses(detail.Reviews),
	})
}

// ListReviews handles GET /api/services/{id}/reviews
func (h *CatalogHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	reviews, err := h.service.Reviews(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toReviewResponses(reviews))
}

// Search handles GET /api/services/search/{query}?page=&per_page=
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)

	services, total, err := h.service.Search(r.Context(), chi.URLParam(r, "query"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(toServiceResponses(services), total, page.Page, page.PerPage))
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
	apperrors "github.com/utafrali/servicehub/pkg/errors"
	"github.com/utafrali/servicehub/pkg/logger"
	"github.com/utafrali/servicehub/pkg/pagination"
	"github.com/utafrali/servicehub/pkg/slug"
)

// CatalogService serves categories, services and reviews.
type CatalogService struct {
	repo   repository.CatalogRepository
	cache  repository.CategoryCache
	index  repository.ServiceIndex
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(repo repository.CatalogRepository, cache repository.CategoryCache, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// ListCategories returns every category. A cache failure falls through to
// the database.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if s.cache != nil {
		categories, ok, err := s.cache.GetCategories(ctx)
		switch {
		case err != nil:
			catalogCacheLookups.WithLabelValues("error").Inc()
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "category cache read failed",
				slog.String("error", err.Error()),
			)
		case ok:
			catalogCacheLookups.WithLabelValues("hit").Inc()
			return categories, nil
		default:
			catalogCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	if s.cache != nil {
		if err := s.cache.SetCategories(ctx, categories); err != nil {
			logger.WithContext(ctx, s.logger).WarnContext(ctx, "category cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return categories, nil
}

// ServicesByCategory returns the services of the category at path. The
// path is matched in its slug form, so "Mens-Salon" finds "mens-salon".
func (s *CatalogService) ServicesByCategory(ctx context.Context, path string) ([]domain.Service, error) {
	path = slug.Generate(path)
	category, err := s.repo.GetCategoryByPath(ctx, path)
	if err != nil {
		return nil, lookupError(err, "category", path)
	}

	services, err := s.repo.ListServicesByCategory(ctx, category.ID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return services, nil
}

// ServiceDetail returns a service with its category and reviews.
func (s *CatalogService) ServiceDetail(ctx context.Context, id int64) (*domain.ServiceDetail, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, lookupError(err, "service", id)
	}

	category, err := s.repo.GetCategoryByID(ctx, svc.CategoryID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	reviews, err := s.repo.ListReviews(ctx, id)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	return &domain.ServiceDetail{Service: *svc, Category: *category, Reviews: reviews}, nil
}

// Reviews returns the reviews of a service, newest first.
func (s *CatalogService) Reviews(ctx context.Context, serviceID int64) ([]domain.Review, error) {
	if _, err := s.repo.GetService(ctx, serviceID); err != nil {
		return nil, lookupError(err, "service", serviceID)
	}

	reviews, err := s.repo.ListReviews(ctx, serviceID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return reviews, nil
}

// BuildIndex loads every service into idx and serves Search from it
// afterwards. It must run before the service handles requests.
func (s *CatalogService) BuildIndex(ctx context.Context, idx repository.ServiceIndex) (int, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return 0, apperrors.Wrap(err, "list categories")
	}

	var services []domain.Service
	for _, c := range categories {
		batch, err := s.repo.ListServicesByCategory(ctx, c.ID)
		if err != nil {
			return 0, apperrors.Wrap(err, "list services of "+c.Path)
		}
		services = append(services, batch...)
	}

	if err := idx.IndexServices(ctx, services); err != nil {
		return 0, apperrors.Wrap(err, "index services")
	}
	s.index = idx
	return len(services), nil
}

// Search returns one page of services matching query and the total number
// of matches. With a search index built, a failing index falls back to the
// database.
func (s *CatalogService) Search(ctx context.Context, query string, page pagination.Params) ([]domain.Service, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, apperrors.InvalidInput("search query is required")
	}

	if s.index != nil {
		services, total, err := s.index.SearchServices(ctx, query, page.Limit(), page.Offset())
		if err == nil {
			catalogSearches.WithLabelValues("index").Inc()
			return services, total, nil
		}
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "search index query failed, using database",
			slog.String("error", err.Error()),
		)
	}

	catalogSearches.WithLabelValues("database").Inc()
	services, total, err := s.repo.SearchServices(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, apperrors.StoreUnavailable(err)
	}
	return services, total, nil
}

func lookupError(err error, resource string, id any) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound(resource, id)
	}
	return apperrors.StoreUnavailable(err)
}

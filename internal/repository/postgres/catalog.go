package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
	"github.com/utafrali/servicehub/pkg/database"
	apperrors "github.com/utafrali/servicehub/pkg/errors"
)

const (
	categoryColumns = `id, name, path, icon, service_count`
	serviceColumns  = `id, category_id, title, description, price, original_price, rating, review_count,
		provider_name, provider_image, provider_role, image`

	listCategoriesSQL     = `SELECT ` + categoryColumns + ` FROM categories ORDER BY id`
	categoryByPathSQL     = `SELECT ` + categoryColumns + ` FROM categories WHERE path = $1`
	categoryByIDSQL       = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	servicesByCategorySQL = `SELECT ` + serviceColumns + ` FROM services WHERE category_id = $1 ORDER BY id`
	serviceByIDSQL        = `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	listReviewsSQL = `
		SELECT id, service_id, user_name, rating, comment, review_date, user_avatar
		FROM reviews
		WHERE service_id = $1
		ORDER BY review_date DESC, id`

	searchServicesSQL = `
		SELECT ` + serviceColumns + `, count(*) OVER () AS total
		FROM services
		WHERE title ILIKE $1 OR description ILIKE $1
		ORDER BY id
		LIMIT $2 OFFSET $3`
)

// CatalogRepository implements repository.CatalogRepository using PostgreSQL.
type CatalogRepository struct {
	db database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(db database.DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

var _ repository.CatalogRepository = (*CatalogRepository)(nil)

// ListCategories returns every category in insertion order.
func (r *CatalogRepository) ListCategories(ctx context.Context) (_ []domain.Category, err error) {
	ctx, end := database.TraceQuery(ctx, "ListCategories", listCategoriesSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// GetCategoryByPath retrieves a category by its URL path.
func (r *CatalogRepository) GetCategoryByPath(ctx context.Context, path string) (*domain.Category, error) {
	return r.getCategory(ctx, "GetCategoryByPath", categoryByPathSQL, path)
}

// GetCategoryByID retrieves a category by id.
func (r *CatalogRepository) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	return r.getCategory(ctx, "GetCategoryByID", categoryByIDSQL, id)
}

func (r *CatalogRepository) getCategory(ctx context.Context, op, query string, arg any) (*domain.Category, error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	c, err := scanCategory(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return nil, apperrors.ErrNotFound
		}
		end(err)
		return nil, fmt.Errorf("get category: %w", err)
	}
	end(nil)
	return c, nil
}

// ListServicesByCategory returns the services of one category.
func (r *CatalogRepository) ListServicesByCategory(ctx context.Context, categoryID int64) (_ []domain.Service, err error) {
	ctx, end := database.TraceQuery(ctx, "ListServicesByCategory", servicesByCategorySQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, servicesByCategorySQL, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := []domain.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service row: %w", err)
		}
		services = append(services, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service rows: %w", err)
	}
	return services, nil
}

// GetService retrieves a service by id.
func (r *CatalogRepository) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	ctx, end := database.TraceQuery(ctx, "GetService", serviceByIDSQL)
	s, err := scanService(r.db.QueryRow(ctx, serviceByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return nil, apperrors.ErrNotFound
		}
		end(err)
		return nil, fmt.Errorf("get service: %w", err)
	}
	end(nil)
	return s, nil
}

// ListReviews returns the reviews of a service, newest first.
func (r *CatalogRepository) ListReviews(ctx context.Context, serviceID int64) (_ []domain.Review, err error) {
	ctx, end := database.TraceQuery(ctx, "ListReviews", listReviewsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listReviewsSQL, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ServiceID,
			&rv.UserName,
			&rv.Rating,
			&rv.Comment,
			&rv.Date,
			&rv.UserAvatar,
		); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}

// SearchServices returns one page of services whose title or description
// contains query, case-insensitively, and the total match count.
func (r *CatalogRepository) SearchServices(ctx context.Context, query string, limit, offset int) (_ []domain.Service, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "SearchServices", searchServicesSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, searchServicesSQL, "%"+escapeLike(query)+"%", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search services: %w", err)
	}
	defer rows.Close()

	var total int
	services := []domain.Service{}
	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(append(serviceFields(&s), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan service row: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate service rows: %w", err)
	}
	return services, total, nil
}

// escapeLike makes % and _ in user input match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Path, &c.Icon, &c.ServiceCount); err != nil {
		return nil, err
	}
	return &c, nil
}

func serviceFields(s *domain.Service) []any {
	return []any{
		&s.ID,
		&s.CategoryID,
		&s.Title,
		&s.Description,
		&s.Price,
		&s.OriginalPrice,
		&s.Rating,
		&s.ReviewCount,
		&s.Provider.Name,
		&s.Provider.Image,
		&s.Provider.Role,
		&s.Image,
	}
}

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	if err := row.Scan(serviceFields(&s)...); err != nil {
		return nil, err
	}
	return &s, nil
}

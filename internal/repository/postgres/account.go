package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
	"github.com/utafrali/servicehub/pkg/database"
	apperrors "github.com/utafrali/servicehub/pkg/errors"
)

const (
	userColumns     = `id, email, password_hash, name, phone, profile_image, created_at`
	providerColumns = `id, email, password_hash, name, ic_number, phone, profile_image, is_verified, rating, points, created_at`

	insertUserSQL = `
		INSERT INTO users (email, password_hash, name, phone, profile_image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	insertProviderSQL = `
		INSERT INTO service_providers (email, password_hash, name, ic_number, phone, profile_image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_verified, rating, points, created_at`

	userByEmailSQL     = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	userByIDSQL        = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	providerByEmailSQL = `SELECT ` + providerColumns + ` FROM service_providers WHERE email = $1`
	providerByIDSQL    = `SELECT ` + providerColumns + ` FROM service_providers WHERE id = $1`
)

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

// CreateUser inserts a new user.
func (r *AccountRepository) CreateUser(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "InsertUser", insertUserSQL)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, insertUserSQL, u.Email, u.PasswordHash, u.Name, u.Phone, u.ProfileImage).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (r *AccountRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByEmail", userByEmailSQL, email)
}

// GetUserByID retrieves a user by id.
func (r *AccountRepository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.scanUser(ctx, "GetUserByID", userByIDSQL, id)
}

// CreateProvider inserts a new service provider. Verification, rating and
// points come back with their column defaults.
func (r *AccountRepository) CreateProvider(ctx context.Context, p *domain.Provider) (err error) {
	ctx, end := database.TraceQuery(ctx, "InsertProvider", insertProviderSQL)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, insertProviderSQL, p.Email, p.PasswordHash, p.Name, p.ICNumber, p.Phone, p.ProfileImage).
		Scan(&p.ID, &p.IsVerified, &p.Rating, &p.Points, &p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("provider", "email", p.Email)
		}
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

// GetProviderByEmail retrieves a provider by email.
func (r *AccountRepository) GetProviderByEmail(ctx context.Context, email string) (*domain.Provider, error) {
	return r.scanProvider(ctx, "GetProviderByEmail", providerByEmailSQL, email)
}

// GetProviderByID retrieves a provider by id.
func (r *AccountRepository) GetProviderByID(ctx context.Context, id int64) (*domain.Provider, error) {
	return r.scanProvider(ctx, "GetProviderByID", providerByIDSQL, id)
}

func (r *AccountRepository) scanUser(ctx context.Context, op, query string, arg any) (*domain.User, error) {
	ctx, end := database.TraceQuery(ctx, op, query)

	var u domain.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Phone,
		&u.ProfileImage,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return nil, apperrors.ErrNotFound
		}
		end(err)
		return nil, fmt.Errorf("scan user: %w", err)
	}
	end(nil)
	return &u, nil
}

func (r *AccountRepository) scanProvider(ctx context.Context, op, query string, arg any) (*domain.Provider, error) {
	ctx, end := database.TraceQuery(ctx, op, query)

	var p domain.Provider
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.Name,
		&p.ICNumber,
		&p.Phone,
		&p.ProfileImage,
		&p.IsVerified,
		&p.Rating,
		&p.Points,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return nil, apperrors.ErrNotFound
		}
		end(err)
		return nil, fmt.Errorf("scan provider: %w", err)
	}
	end(nil)
	return &p, nil
}

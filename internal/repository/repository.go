package repository

import (
	"context"

	"github.com/utafrali/servicehub/internal/domain"
)

// AddressStore is the persistence side of the address book. Reads run
// directly; every mutation runs inside InTx so its statements commit or roll
// back together.
type AddressStore interface {
	// ListByOwner returns the owner's addresses, default first, then by id
	// descending. It never returns a nil slice on success.
	ListByOwner(ctx context.Context, owner domain.Owner) ([]domain.Address, error)

	// InTx runs fn in one transaction. fn's error rolls everything back and is
	// returned unchanged.
	InTx(ctx context.Context, fn func(tx AddressTx) error) error
}

// AddressTx is the set of statements available inside an address
// transaction.
type AddressTx interface {
	// LockOwner serialises mutations of one owner's address book until the
	// transaction ends. It also holds when the owner has no rows yet.
	LockOwner(ctx context.Context, owner domain.Owner) error

	// GetForOwner returns the address only if it belongs to owner, and
	// apperrors.ErrNotFound otherwise.
	GetForOwner(ctx context.Context, owner domain.Owner, id int64) (*domain.Address, error)

	// ClearDefaults unsets is_default on every address of the owner.
	ClearDefaults(ctx context.Context, owner domain.Owner) error

	// ClearOtherDefaults unsets is_default on every address of the owner
	// except id.
	ClearOtherDefaults(ctx context.Context, owner domain.Owner, id int64) error

	// Insert stores a new address and fills in its id and timestamps.
	Insert(ctx context.Context, a *domain.Address) error

	// Update overwrites kind, line, city and is_default of an owned address
	// and refreshes UpdatedAt.
	Update(ctx context.Context, a *domain.Address) error

	// Delete removes an owned address.
	Delete(ctx context.Context, owner domain.Owner, id int64) error

	// PromoteNewest makes the owner's highest-id address other than excludeID
	// the default and returns its id, or 0 when there is none. Pass 0 to
	// exclude nothing.
	PromoteNewest(ctx context.Context, owner domain.Owner, excludeID int64) (int64, error)

	// CountDefaults returns how many of the owner's addresses are default.
	CountDefaults(ctx context.Context, owner domain.Owner) (int, error)

	// Count returns how many addresses the owner has.
	Count(ctx context.Context, owner domain.Owner) (int, error)
}

// AccountRepository persists user and provider accounts.
type AccountRepository interface {
	// CreateUser inserts u and sets its id and creation time. A taken email
	// yields an ALREADY_EXISTS error.
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	// CreateProvider inserts p and sets its id and creation time.
	CreateProvider(ctx context.Context, p *domain.Provider) error
	GetProviderByEmail(ctx context.Context, email string) (*domain.Provider, error)
	GetProviderByID(ctx context.Context, id int64) (*domain.Provider, error)
}

// CatalogRepository reads categories, services and reviews.
type CatalogRepository interface {
	// ListCategories returns every category with its service count.
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryByPath(ctx context.Context, path string) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	ListServicesByCategory(ctx context.Context, categoryID int64) ([]domain.Service, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)

	// ListReviews returns the reviews of a service, newest first.
	ListReviews(ctx context.Context, serviceID int64) ([]domain.Review, error)

	// SearchServices matches query against title and description. It
	// returns one page and the total number of matches.
	SearchServices(ctx context.Context, query string, limit, offset int) ([]domain.Service, int, error)
}

// ServiceIndex is a search index over the service catalog.
type ServiceIndex interface {
	// IndexServices adds or replaces services in the index.
	IndexServices(ctx context.Context, services []domain.Service) error
	// SearchServices has the same contract as CatalogRepository.SearchServices.
	SearchServices(ctx context.Context, query string, limit, offset int) ([]domain.Service, int, error)
}

// CategoryCache holds the category list between requests.
type CategoryCache interface {
	// GetCategories returns the cached list, or ok=false on a miss.
	GetCategories(ctx context.Context) (categories []domain.Category, ok bool, err error)
	SetCategories(ctx context.Context, categories []domain.Category) error
}

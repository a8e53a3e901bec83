package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
	"github.com/utafrali/servicehub/pkg/database"
	apperrors "github.com/utafrali/servicehub/pkg/errors"
)

const addressColumns = `id, owner_kind, owner_id, kind, line, city, is_default, created_at, updated_at`

const (
	listAddressesSQL = `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY is_default DESC, id DESC`

	// The lock key is the owner string, e.g. "user:7", hashed to bigint.
	lockOwnerSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	getAddressSQL = `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE id = $1 AND owner_kind = $2 AND owner_id = $3`

	clearDefaultsSQL = `
		UPDATE addresses SET is_default = false, updated_at = now()
		WHERE owner_kind = $1 AND owner_id = $2 AND is_default`

	clearOtherDefaultsSQL = `
		UPDATE addresses SET is_default = false, updated_at = now()
		WHERE owner_kind = $1 AND owner_id = $2 AND id <> $3 AND is_default`

	insertAddressSQL = `
		INSERT INTO addresses (owner_kind, owner_id, kind, line, city, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	updateAddressSQL = `
		UPDATE addresses
		SET kind = $1, line = $2, city = $3, is_default = $4, updated_at = now()
		WHERE id = $5 AND owner_kind = $6 AND owner_id = $7
		RETURNING created_at, updated_at`

	deleteAddressSQL = `DELETE FROM addresses WHERE id = $1 AND owner_kind = $2 AND owner_id = $3`

	promoteNewestSQL = `
		UPDATE addresses SET is_default = true, updated_at = now()
		WHERE id = (
			SELECT id FROM addresses
			WHERE owner_kind = $1 AND owner_id = $2 AND id <> $3
			ORDER BY id DESC
			LIMIT 1
		)
		RETURNING id`

	countDefaultsSQL = `SELECT count(*) FROM addresses WHERE owner_kind = $1 AND owner_id = $2 AND is_default`

	countAddressesSQL = `SELECT count(*) FROM addresses WHERE owner_kind = $1 AND owner_id = $2`
)

// AddressRepository implements repository.AddressStore using PostgreSQL.
type AddressRepository struct {
	pool database.Pool
}

// NewAddressRepository creates a new PostgreSQL-backed address store.
func NewAddressRepository(pool database.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

var _ repository.AddressStore = (*AddressRepository)(nil)

// ListByOwner returns the owner's addresses, default first.
func (r *AddressRepository) ListByOwner(ctx context.Context, owner domain.Owner) (_ []domain.Address, err error) {
	ctx, end := database.TraceQuery(ctx, "ListAddresses", listAddressesSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, listAddressesSQL, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []domain.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}

	return addresses, nil
}

// InTx runs fn inside one database transaction.
func (r *AddressRepository) InTx(ctx context.Context, fn func(tx repository.AddressTx) error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&addressTx{db: tx})
	})
}

// addressTx runs address statements on an open transaction.
type addressTx struct {
	db database.DBTX
}

func (t *addressTx) exec(ctx context.Context, op, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, end := database.TraceQuery(ctx, op, sql)
	tag, err := t.db.Exec(ctx, sql, args...)
	end(err)
	return tag, err
}

func (t *addressTx) queryRow(ctx context.Context, op, sql string, args []any, dest ...any) error {
	ctx, end := database.TraceQuery(ctx, op, sql)
	err := t.db.QueryRow(ctx, sql, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		end(nil)
	} else {
		end(err)
	}
	return err
}

func (t *addressTx) LockOwner(ctx context.Context, owner domain.Owner) error {
	if _, err := t.exec(ctx, "LockOwner", lockOwnerSQL, owner.String()); err != nil {
		return fmt.Errorf("lock owner %s: %w", owner, err)
	}
	return nil
}

func (t *addressTx) GetForOwner(ctx context.Context, owner domain.Owner, id int64) (*domain.Address, error) {
	ctx, end := database.TraceQuery(ctx, "GetAddress", getAddressSQL)
	a, err := scanAddress(t.db.QueryRow(ctx, getAddressSQL, id, string(owner.Kind), owner.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return nil, apperrors.ErrNotFound
		}
		end(err)
		return nil, fmt.Errorf("get address: %w", err)
	}
	end(nil)
	return a, nil
}

func (t *addressTx) ClearDefaults(ctx context.Context, owner domain.Owner) error {
	if _, err := t.exec(ctx, "ClearDefaults", clearDefaultsSQL, string(owner.Kind), owner.ID); err != nil {
		return fmt.Errorf("clear defaults: %w", err)
	}
	return nil
}

func (t *addressTx) ClearOtherDefaults(ctx context.Context, owner domain.Owner, id int64) error {
	if _, err := t.exec(ctx, "ClearOtherDefaults", clearOtherDefaultsSQL, string(owner.Kind), owner.ID, id); err != nil {
		return fmt.Errorf("clear other defaults: %w", err)
	}
	return nil
}

func (t *addressTx) Insert(ctx context.Context, a *domain.Address) error {
	err := t.queryRow(ctx, "InsertAddress", insertAddressSQL,
		[]any{string(a.OwnerKind), a.OwnerID, a.Kind, a.Line, a.City, a.IsDefault},
		&a.ID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (t *addressTx) Update(ctx context.Context, a *domain.Address) error {
	err := t.queryRow(ctx, "UpdateAddress", updateAddressSQL,
		[]any{a.Kind, a.Line, a.City, a.IsDefault, a.ID, string(a.OwnerKind), a.OwnerID},
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("update address: %w", err)
	}
	return nil
}

func (t *addressTx) Delete(ctx context.Context, owner domain.Owner, id int64) error {
	tag, err := t.exec(ctx, "DeleteAddress", deleteAddressSQL, id, string(owner.Kind), owner.ID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (t *addressTx) PromoteNewest(ctx context.Context, owner domain.Owner, excludeID int64) (int64, error) {
	var id int64
	err := t.queryRow(ctx, "PromoteNewest", promoteNewestSQL,
		[]any{string(owner.Kind), owner.ID, excludeID}, &id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("promote newest address: %w", err)
	}
	return id, nil
}

func (t *addressTx) CountDefaults(ctx context.Context, owner domain.Owner) (int, error) {
	var n int
	if err := t.queryRow(ctx, "CountDefaults", countDefaultsSQL, []any{string(owner.Kind), owner.ID}, &n); err != nil {
		return 0, fmt.Errorf("count default addresses: %w", err)
	}
	return n, nil
}

func (t *addressTx) Count(ctx context.Context, owner domain.Owner) (int, error) {
	var n int
	if err := t.queryRow(ctx, "CountAddresses", countAddressesSQL, []any{string(owner.Kind), owner.ID}, &n); err != nil {
		return 0, fmt.Errorf("count addresses: %w", err)
	}
	return n, nil
}

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var (
		a    domain.Address
		kind string
	)
	if err := row.Scan(
		&a.ID,
		&kind,
		&a.OwnerID,
		&a.Kind,
		&a.Line,
		&a.City,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.OwnerKind = domain.AccountKind(kind)
	return &a, nil
}

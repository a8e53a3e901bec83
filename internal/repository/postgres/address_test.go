package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
	"github.com/utafrali/servicehub/pkg/database"
	apperrors "github.com/utafrali/servicehub/pkg/errors"
)

var alice = domain.Owner{ID: 7, Kind: domain.KindUser}

func newAddressTestFixture(t *testing.T) (*AddressRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewAddressRepository(mock), mock
}

func addressRows(addrs ...domain.Address) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "owner_kind", "owner_id", "kind", "line", "city", "is_default", "created_at", "updated_at",
	})
	for _, a := range addrs {
		rows.AddRow(a.ID, string(a.OwnerKind), a.OwnerID, a.Kind, a.Line, a.City, a.IsDefault, a.CreatedAt, a.UpdatedAt)
	}
	return rows
}

func sampleAddress(id int64, isDefault bool) domain.Address {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Address{
		ID:        id,
		OwnerID:   alice.ID,
		OwnerKind: alice.Kind,
		Kind:      "Home",
		Line:      "12 Main St",
		City:      "Springfield",
		IsDefault: isDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// inTx runs fn in a transaction the mock expects to commit.
func inTx(t *testing.T, repo *AddressRepository, mock pgxmock.PgxPoolIface, setup func(), fn func(tx repository.AddressTx) error) error {
	t.Helper()
	mock.ExpectBegin()
	setup()
	return repo.InTx(context.Background(), fn)
}

// ---------------------------------------------------------------------------
// ListByOwner
// ---------------------------------------------------------------------------

func TestAddressRepository_ListByOwner_Success(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	def := sampleAddress(3, true)
	other := sampleAddress(5, false)

	mock.ExpectQuery("SELECT .+ FROM addresses WHERE owner_kind = \\$1 AND owner_id = \\$2 ORDER BY is_default DESC, id DESC").
		WithArgs("user", int64(7)).
		WillReturnRows(addressRows(def, other))

	got, err := repo.ListByOwner(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.True(t, got[0].IsDefault)
	assert.Equal(t, domain.KindUser, got[0].OwnerKind)
	assert.Equal(t, int64(5), got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressRepository_ListByOwner_EmptyIsNotNil(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM addresses").
		WithArgs("provider", int64(7)).
		WillReturnRows(addressRows())

	got, err := repo.ListByOwner(context.Background(), domain.Owner{ID: 7, Kind: domain.KindProvider})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressRepository_ListByOwner_QueryError(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM addresses").
		WithArgs("user", int64(7)).
		WillReturnError(errors.New("connection reset"))

	got, err := repo.ListByOwner(context.Background(), alice)
	assert.Nil(t, got)
	assert.ErrorContains(t, err, "list addresses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// InTx
// ---------------------------------------------------------------------------

func TestAddressRepository_InTx_CreateDefault(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC()
	a := &domain.Address{OwnerID: 7, OwnerKind: domain.KindUser, Kind: "Work", Line: "1 Loop", City: "Metropolis", IsDefault: true}

	err := inTx(t, repo, mock, func() {
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtextextended($1, 0))")).
			WithArgs("user:7").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectExec("UPDATE addresses SET is_default = false").
			WithArgs("user", int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery("INSERT INTO addresses").
			WithArgs("user", int64(7), "Work", "1 Loop", "Metropolis", true).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))
		mock.ExpectCommit()
	}, func(tx repository.AddressTx) error {
		if err := tx.LockOwner(context.Background(), alice); err != nil {
			return err
		}
		if err := tx.ClearDefaults(context.Background(), alice); err != nil {
			return err
		}
		return tx.Insert(context.Background(), a)
	})

	require.NoError(t, err)
	assert.Equal(t, int64(11), a.ID)
	assert.Equal(t, now, a.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressRepository_InTx_RollsBackOnError(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	boom := errors.New("insert failed")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE addresses SET is_default = false").
		WithArgs("user", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO addresses").
		WithArgs("user", int64(7), "Home", "12 Main St", "Springfield", true).
		WillReturnError(boom)
	mock.ExpectRollback()

	a := sampleAddress(0, true)
	err := repo.InTx(context.Background(), func(tx repository.AddressTx) error {
		if err := tx.ClearDefaults(context.Background(), alice); err != nil {
			return err
		}
		return tx.Insert(context.Background(), &a)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressRepository_InTx_BeginFailure(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := repo.InTx(context.Background(), func(repository.AddressTx) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, errors.Is(err, database.ErrBeginTx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func TestAddressTx_GetForOwner(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	want := sampleAddress(4, false)

	var got *domain.Address
	err := inTx(t, repo, mock, func() {
		mock.ExpectQuery("SELECT .+ FROM addresses WHERE id = \\$1 AND owner_kind = \\$2 AND owner_id = \\$3").
			WithArgs(int64(4), "user", int64(7)).
			WillReturnRows(addressRows(want))
		mock.ExpectCommit()
	}, func(tx repository.AddressTx) error {
		var err error
		got, err = tx.GetForOwner(context.Background(), alice, 4)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressTx_GetForOwner_NotFound(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM addresses WHERE id =").
		WithArgs(int64(99), "user", int64(7)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx repository.AddressTx) error {
		_, err := tx.GetForOwner(context.Background(), alice, 99)
		return err
	})

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressTx_ClearOtherDefaults(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	err := inTx(t, repo, mock, func() {
		mock.ExpectExec("UPDATE addresses SET is_default = false.+AND id <> \\$3").
			WithArgs("user", int64(7), int64(4)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
	}, func(tx repository.AddressTx) error {
		return tx.ClearOtherDefaults(context.Background(), alice, 4)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressTx_Update(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	created := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	a := sampleAddress(4, true)
	a.City = "Shelbyville"

	err := inTx(t, repo, mock, func() {
		mock.ExpectQuery("UPDATE addresses SET kind = \\$1").
			WithArgs("Home", "12 Main St", "Shelbyville", true, int64(4), "user", int64(7)).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, updated))
		mock.ExpectCommit()
	}, func(tx repository.AddressTx) error {
		return tx.Update(context.Background(), &a)
	})

	require.NoError(t, err)
	assert.Equal(t, created, a.CreatedAt)
	assert.Equal(t, updated, a.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressTx_Update_NotOwned(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	a := sampleAddress(4, false)
	a.OwnerID = 8

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE addresses SET kind").
		WithArgs("Home", "12 Main St", "Springfield", false, int64(4), "user", int64(8)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx repository.AddressTx) error {
		return tx.Update(context.Background(), &a)
	})

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressTx_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"missing", 0, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newAddressTestFixture(t)
			defer mock.Close()

			mock.ExpectBegin()
			mock.ExpectExec("DELETE FROM addresses WHERE id = \\$1").
				WithArgs(int64(4), "user", int64(7)).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))
			if tt.wantErr == nil {
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			err := repo.InTx(context.Background(), func(tx repository.AddressTx) error {
				return tx.Delete(context.Background(), alice, 4)
			})

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAddressTx_PromoteNewest(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	var promoted, none int64
	err := inTx(t, repo, mock, func() {
		mock.ExpectQuery("UPDATE addresses SET is_default = true.+ORDER BY id DESC LIMIT 1").
			WithArgs("user", int64(7), int64(4)).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
		mock.ExpectQuery("UPDATE addresses SET is_default = true").
			WithArgs("user", int64(7), int64(0)).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectCommit()
	}, func(tx repository.AddressTx) error {
		var err error
		if promoted, err = tx.PromoteNewest(context.Background(), alice, 4); err != nil {
			return err
		}
		none, err = tx.PromoteNewest(context.Background(), alice, 0)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, int64(9), promoted)
	assert.Zero(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddressTx_Counts(t *testing.T) {
	repo, mock := newAddressTestFixture(t)
	defer mock.Close()

	var defaults, total int
	err := inTx(t, repo, mock, func() {
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM addresses .+ AND is_default").
			WithArgs("user", int64(7)).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM addresses WHERE owner_kind = \\$1 AND owner_id = \\$2$").
			WithArgs("user", int64(7)).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectCommit()
	}, func(tx repository.AddressTx) error {
		var err error
		if defaults, err = tx.CountDefaults(context.Background(), alice); err != nil {
			return err
		}
		total, err = tx.Count(context.Background(), alice)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 1, defaults)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

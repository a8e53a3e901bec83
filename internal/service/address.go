package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
	"github.com/utafrali/servicehub/pkg/database"
	apperrors "github.com/utafrali/servicehub/pkg/errors"
	"github.com/utafrali/servicehub/pkg/logger"
)

// AddressEventPublisher is notified after an address mutation commits.
type AddressEventPublisher interface {
	PublishAddressCreated(ctx context.Context, a *domain.Address) error
	PublishAddressUpdated(ctx context.Context, a *domain.Address) error
	PublishAddressDeleted(ctx context.Context, owner domain.Owner, id, promotedID int64) error
}

// AddressBook manages owners' addresses. Once an owner has at least one
// address, exactly one of them is the default.
//
// With allowDefaultless set, create and update never pick a default on the
// caller's behalf: the first address may be created as non-default and the
// default may be cleared by update without a replacement. Delete always
// promotes a replacement.
type AddressBook struct {
	store            repository.AddressStore
	events           AddressEventPublisher
	logger           *slog.Logger
	allowDefaultless bool
}

// NewAddressBook creates a new address book service.
func NewAddressBook(
	store repository.AddressStore,
	events AddressEventPublisher,
	logger *slog.Logger,
	allowDefaultless bool,
) *AddressBook {
	return &AddressBook{
		store:            store,
		events:           events,
		logger:           logger,
		allowDefaultless: allowDefaultless,
	}
}

// List returns the owner's addresses, default first, then newest first.
func (b *AddressBook) List(ctx context.Context, owner domain.Owner) ([]domain.Address, error) {
	addresses, err := b.store.ListByOwner(ctx, owner)
	if err != nil {
		addressOperations.WithLabelValues("list", outcomeError).Inc()
		return nil, apperrors.StoreUnavailable(err)
	}
	addressOperations.WithLabelValues("list", outcomeOK).Inc()
	return addresses, nil
}

// Create adds an address for owner. If it is the default, every other
// address of the owner stops being default in the same transaction.
func (b *AddressBook) Create(ctx context.Context, owner domain.Owner, in domain.AddressInput) (*domain.Address, error) {
	in = in.Normalize()
	if problems := in.Validate(); problems != nil {
		addressOperations.WithLabelValues("create", outcomeInvalid).Inc()
		return nil, apperrors.Validation(problems)
	}

	address := &domain.Address{
		OwnerID:   owner.ID,
		OwnerKind: owner.Kind,
		Kind:      in.Kind,
		Line:      in.Line,
		City:      in.City,
		IsDefault: in.IsDefault,
	}

	err := b.store.InTx(ctx, func(tx repository.AddressTx) error {
		if err := tx.LockOwner(ctx, owner); err != nil {
			return err
		}

		if address.IsDefault {
			if err := tx.ClearDefaults(ctx, owner); err != nil {
				return err
			}
		} else if !b.allowDefaultless {
			n, err := tx.CountDefaults(ctx, owner)
			if err != nil {
				return err
			}
			address.IsDefault = n == 0
		}

		return tx.Insert(ctx, address)
	})
	if err != nil {
		return nil, b.fail(ctx, "create", 0, err)
	}

	addressOperations.WithLabelValues("create", outcomeOK).Inc()
	logger.WithContext(ctx, b.logger).InfoContext(ctx, "address created",
		slog.String("owner_id", owner.String()),
		slog.Int64("address_id", address.ID),
		slog.Bool("is_default", address.IsDefault),
	)

	if err := b.events.PublishAddressCreated(ctx, address); err != nil {
		b.publishFailed(ctx, "address.created", address.ID, err)
	}

	return address, nil
}

// Update overwrites an owned address. Setting is_default clears it on every
// other address of the owner. Clearing it on the current default hands the
// flag to the owner's newest other address; an only address stays default.
// An owner with no default at all gets the updated address as default.
func (b *AddressBook) Update(ctx context.Context, owner domain.Owner, id int64, in domain.AddressInput) (*domain.Address, error) {
	in = in.Normalize()
	if problems := in.Validate(); problems != nil {
		addressOperations.WithLabelValues("update", outcomeInvalid).Inc()
		return nil, apperrors.Validation(problems)
	}

	var (
		address  *domain.Address
		promoted int64
	)
	err := b.store.InTx(ctx, func(tx repository.AddressTx) error {
		if err := tx.LockOwner(ctx, owner); err != nil {
			return err
		}

		current, err := tx.GetForOwner(ctx, owner, id)
		if err != nil {
			return err
		}
		wasDefault := current.IsDefault

		updated := *current
		updated.Kind = in.Kind
		updated.Line = in.Line
		updated.City = in.City
		updated.IsDefault = in.IsDefault
		address = &updated

		if in.IsDefault {
			if err := tx.ClearOtherDefaults(ctx, owner, id); err != nil {
				return err
			}
			return tx.Update(ctx, address)
		}

		if b.allowDefaultless {
			return tx.Update(ctx, address)
		}

		if !wasDefault {
			// An owner left without a default, e.g. by rows written in
			// defaultless mode, gets this address as the default.
			n, err := tx.CountDefaults(ctx, owner)
			if err != nil {
				return err
			}
			address.IsDefault = n == 0
			return tx.Update(ctx, address)
		}

		n, err := tx.Count(ctx, owner)
		if err != nil {
			return err
		}
		if n == 1 {
			address.IsDefault = true
			return tx.Update(ctx, address)
		}

		// The target gives up the flag before another address takes it.
		if err := tx.Update(ctx, address); err != nil {
			return err
		}
		promoted, err = tx.PromoteNewest(ctx, owner, id)
		return err
	})
	if err != nil {
		return nil, b.fail(ctx, "update", id, err)
	}

	addressOperations.WithLabelValues("update", outcomeOK).Inc()
	if promoted != 0 {
		defaultPromotions.Inc()
	}
	logger.WithContext(ctx, b.logger).InfoContext(ctx, "address updated",
		slog.String("owner_id", owner.String()),
		slog.Int64("address_id", id),
		slog.Bool("is_default", address.IsDefault),
		slog.Int64("promoted_id", promoted),
	)

	if err := b.events.PublishAddressUpdated(ctx, address); err != nil {
		b.publishFailed(ctx, "address.updated", id, err)
	}

	return address, nil
}

// Delete removes an owned address. If it was the default, the owner's
// newest remaining address becomes the default.
func (b *AddressBook) Delete(ctx context.Context, owner domain.Owner, id int64) error {
	var promoted int64
	err := b.store.InTx(ctx, func(tx repository.AddressTx) error {
		if err := tx.LockOwner(ctx, owner); err != nil {
			return err
		}

		current, err := tx.GetForOwner(ctx, owner, id)
		if err != nil {
			return err
		}

		if err := tx.Delete(ctx, owner, id); err != nil {
			return err
		}

		if current.IsDefault {
			promoted, err = tx.PromoteNewest(ctx, owner, 0)
			return err
		}
		return nil
	})
	if err != nil {
		return b.fail(ctx, "delete", id, err)
	}

	addressOperations.WithLabelValues("delete", outcomeOK).Inc()
	if promoted != 0 {
		defaultPromotions.Inc()
	}
	logger.WithContext(ctx, b.logger).InfoContext(ctx, "address deleted",
		slog.String("owner_id", owner.String()),
		slog.Int64("address_id", id),
		slog.Int64("promoted_id", promoted),
	)

	if err := b.events.PublishAddressDeleted(ctx, owner, id, promoted); err != nil {
		b.publishFailed(ctx, "address.deleted", id, err)
	}

	return nil
}

// fail maps a rolled back transaction to the error the caller sees and
// records the outcome. Driver errors are wrapped so their text stays in logs.
func (b *AddressBook) fail(ctx context.Context, op string, id int64, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		outcome := outcomeError
		if errors.Is(err, apperrors.ErrNotFound) {
			outcome = outcomeNotFound
		}
		addressOperations.WithLabelValues(op, outcome).Inc()
		return appErr
	case errors.Is(err, apperrors.ErrNotFound):
		addressOperations.WithLabelValues(op, outcomeNotFound).Inc()
		return apperrors.NotFound("address", id)
	case errors.Is(err, database.ErrBeginTx):
		addressOperations.WithLabelValues(op, outcomeError).Inc()
		return apperrors.StoreUnavailable(err)
	default:
		addressOperations.WithLabelValues(op, outcomeError).Inc()
		logger.WithContext(ctx, b.logger).WarnContext(ctx, "address transaction rolled back",
			slog.String("operation", op),
			slog.Int64("address_id", id),
			slog.String("error", err.Error()),
		)
		return apperrors.TransactionFailed(err)
	}
}

func (b *AddressBook) publishFailed(ctx context.Context, event string, id int64, err error) {
	logger.WithContext(ctx, b.logger).ErrorContext(ctx, "failed to publish event",
		slog.String("event", event),
		slog.Int64("address_id", id),
		slog.String("error", err.Error()),
	)
}

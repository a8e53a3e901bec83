package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/internal/repository"
	apperrors "github.com/utafrali/servicehub/pkg/errors"
	"github.com/utafrali/servicehub/pkg/logger"
)

// bcryptCost is the cost factor for bcrypt password hashing.
var bcryptCost = 12

// comparePassword checks a plaintext password against a bcrypt hash.
var comparePassword = bcrypt.CompareHashAndPassword

// missingAccountHash is compared against when no account matches the email,
// so an unknown email costs the same bcrypt work as a wrong password.
var missingAccountHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("servicehub-missing-account"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("generating missing account hash: %v", err))
	}
	return h
})

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateAccessToken(owner domain.Owner) (string, time.Time, error)
}

// AccountEventPublisher is notified after an account is created.
type AccountEventPublisher interface {
	PublishAccountRegistered(ctx context.Context, owner domain.Owner, email string) error
}

// AccountService registers and authenticates users and providers.
type AccountService struct {
	repo   repository.AccountRepository
	tokens TokenIssuer
	events AccountEventPublisher
	logger *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	repo repository.AccountRepository,
	tokens TokenIssuer,
	events AccountEventPublisher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		repo:   repo,
		tokens: tokens,
		events: events,
		logger: logger,
	}
}

// Register creates an account of the given kind and signs a token for it.
func (s *AccountService) Register(ctx context.Context, kind domain.AccountKind, reg domain.Registration) (*domain.AuthToken, error) {
	reg.Email = normalizeEmail(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)
	if reg.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if reg.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if len(reg.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcryptCost)
	if err != nil {
		return nil, apperrors.Internal(apperrors.Wrap(err, "hash password"))
	}

	var owner domain.Owner
	switch kind {
	case domain.KindUser:
		u := &domain.User{
			Email:        reg.Email,
			PasswordHash: string(hashedPassword),
			Name:         reg.Name,
			Phone:        reg.Phone,
			ProfileImage: reg.ProfileImage,
		}
		if err := s.repo.CreateUser(ctx, u); err != nil {
			return nil, accountStoreError(err)
		}
		owner = domain.Owner{ID: u.ID, Kind: kind}
	case domain.KindProvider:
		if strings.TrimSpace(reg.ICNumber) == "" {
			return nil, apperrors.InvalidInput("ic number is required")
		}
		p := &domain.Provider{
			Email:        reg.Email,
			PasswordHash: string(hashedPassword),
			Name:         reg.Name,
			ICNumber:     strings.TrimSpace(reg.ICNumber),
			Phone:        reg.Phone,
			ProfileImage: reg.ProfileImage,
		}
		if err := s.repo.CreateProvider(ctx, p); err != nil {
			return nil, accountStoreError(err)
		}
		owner = domain.Owner{ID: p.ID, Kind: kind}
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown account kind %q", kind))
	}

	token, err := s.issue(owner)
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishAccountRegistered(ctx, owner, reg.Email); err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account", owner.String()),
			slog.String("error", err.Error()),
		)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "account registered",
		slog.String("account", owner.String()),
	)

	return token, nil
}

// Login checks the credentials of an account of the given kind and signs a
// token for it. Unknown emails and wrong passwords get the same error.
func (s *AccountService) Login(ctx context.Context, kind domain.AccountKind, email, password string) (*domain.AuthToken, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.InvalidInput("email and password are required")
	}

	var (
		id   int64
		hash string
		err  error
	)
	switch kind {
	case domain.KindUser:
		var u *domain.User
		if u, err = s.repo.GetUserByEmail(ctx, email); err == nil {
			id, hash = u.ID, u.PasswordHash
		}
	case domain.KindProvider:
		var p *domain.Provider
		if p, err = s.repo.GetProviderByEmail(ctx, email); err == nil {
			id, hash = p.ID, p.PasswordHash
		}
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown account kind %q", kind))
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = comparePassword(missingAccountHash(), []byte(password))
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, apperrors.StoreUnavailable(err)
	}

	if err := comparePassword([]byte(hash), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	owner := domain.Owner{ID: id, Kind: kind}
	token, err := s.issue(owner)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "account logged in",
		slog.String("account", owner.String()),
	)

	return token, nil
}

// Me returns the profile of the authenticated account.
func (s *AccountService) Me(ctx context.Context, owner domain.Owner) (*domain.Profile, error) {
	switch owner.Kind {
	case domain.KindUser:
		u, err := s.repo.GetUserByID(ctx, owner.ID)
		if err != nil {
			return nil, profileError(err, owner)
		}
		return domain.UserProfile(u), nil
	case domain.KindProvider:
		p, err := s.repo.GetProviderByID(ctx, owner.ID)
		if err != nil {
			return nil, profileError(err, owner)
		}
		return domain.ProviderProfile(p), nil
	default:
		return nil, apperrors.Unauthorized("unknown account kind")
	}
}

func (s *AccountService) issue(owner domain.Owner) (*domain.AuthToken, error) {
	accessToken, expiresAt, err := s.tokens.GenerateAccessToken(owner)
	if err != nil {
		return nil, apperrors.Internal(apperrors.Wrap(err, "generate token"))
	}
	return &domain.AuthToken{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		UserID:      owner.ID,
		UserType:    owner.Kind,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func accountStoreError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.StoreUnavailable(err)
}

func profileError(err error, owner domain.Owner) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound(string(owner.Kind), owner.ID)
	}
	return apperrors.StoreUnavailable(err)
}

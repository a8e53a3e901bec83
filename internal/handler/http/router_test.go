package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/pkg/health"
	"github.com/utafrali/servicehub/pkg/httputil"
	"github.com/utafrali/servicehub/pkg/middleware"
	"github.com/utafrali/servicehub/pkg/pagination"
)

// ============================================================================
// Mock Services
// ============================================================================

type mockAddressService struct {
	mock.Mock
}

func (m *mockAddressService) List(ctx context.Context, owner domain.Owner) ([]domain.Address, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Address), args.Error(1)
}

func (m *mockAddressService) Create(ctx context.Context, owner domain.Owner, in domain.AddressInput) (*domain.Address, error) {
	args := m.Called(ctx, owner, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *mockAddressService) Update(ctx context.Context, owner domain.Owner, id int64, in domain.AddressInput) (*domain.Address, error) {
	args := m.Called(ctx, owner, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *mockAddressService) Delete(ctx context.Context, owner domain.Owner, id int64) error {
	args := m.Called(ctx, owner, id)
	return args.Error(0)
}

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) Register(ctx context.Context, kind domain.AccountKind, reg domain.Registration) (*domain.AuthToken, error) {
	args := m.Called(ctx, kind, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthToken), args.Error(1)
}

func (m *mockAccountService) Login(ctx context.Context, kind domain.AccountKind, email, password string) (*domain.AuthToken, error) {
	args := m.Called(ctx, kind, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthToken), args.Error(1)
}

func (m *mockAccountService) Me(ctx context.Context, owner domain.Owner) (*domain.Profile, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

type mockCatalogService struct {
	mock.Mock
}

func (m *mockCatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCatalogService) ServicesByCategory(ctx context.Context, path string) ([]domain.Service, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Service), args.Error(1)
}

func (m *mockCatalogService) ServiceDetail(ctx context.Context, id int64) (*domain.ServiceDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ServiceDetail), args.Error(1)
}

func (m *mockCatalogService) Reviews(ctx context.Context, serviceID int64) ([]domain.Review, error) {
	args := m.Called(ctx, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockCatalogService) Search(ctx context.Context, query string, page pagination.Params) ([]domain.Service, int, error) {
	args := m.Called(ctx, query, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Service), args.Int(1), args.Error(2)
}

// ============================================================================
// Helpers
// ============================================================================

var (
	testUser     = domain.Owner{ID: 7, Kind: domain.KindUser}
	testProvider = domain.Owner{ID: 7, Kind: domain.KindProvider}
)

func fakeIdentify(token string) (*middleware.Identity, error) {
	switch token {
	case "user-token":
		return &middleware.Identity{Subject: "7", Kind: "user"}, nil
	case "provider-token":
		return &middleware.Identity{Subject: "7", Kind: "provider"}, nil
	case "broken-token":
		return &middleware.Identity{Subject: "abc", Kind: "user"}, nil
	default:
		return nil, errors.New("invalid token")
	}
}

type testEnv struct {
	router    http.Handler
	addresses *mockAddressService
	accounts  *mockAccountService
	catalog   *mockCatalogService
}

func newTestEnv(t *testing.T, opts ...func(*RouterConfig)) *testEnv {
	t.Helper()
	env := &testEnv{
		addresses: &mockAddressService{},
		accounts:  &mockAccountService{},
		catalog:   &mockCatalogService{},
	}
	cfg := RouterConfig{
		CORS:          middleware.CORSConfig{AllowedOrigins: []string{"*"}},
		CatalogMaxAge: time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.router = NewRouter(
		Services{Addresses: env.addresses, Accounts: env.accounts, Catalog: env.catalog},
		fakeIdentify,
		health.NewHandler(),
		logger,
		cfg,
	)
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		buf, _ := json.Marshal(b)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// envelope decodes {data|error} keeping data raw.
type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error, rec.Body.String())
	return env.Error
}

func decodeJSON(rec *httptest.ResponseRecorder, dst any) error {
	return json.Unmarshal(rec.Body.Bytes(), dst)
}

package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/servicehub/internal/domain"
	apperrors "github.com/utafrali/servicehub/pkg/errors"
)

func TestAddressRoutes_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/address"},
		{http.MethodPost, "/api/address"},
		{http.MethodPut, "/api/address/1"},
		{http.MethodDelete, "/api/address/1"},
	}
	for _, rt := range routes {
		t.Run(rt.method, func(t *testing.T) {
			rec := env.do(rt.method, rt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			rec = env.do(rt.method, rt.path, "forged", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	env.addresses.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestAddressRoutes_UnusableIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/address", "broken-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorOf(t, rec).Code)
}

func TestAddressHandler_List(t *testing.T) {
	env := newTestEnv(t)
	env.addresses.On("List", mock.Anything, testUser).Return([]domain.Address{
		{ID: 3, OwnerID: 7, Kind: "Work", Line: "2 Side St", City: "Springfield", IsDefault: true},
		{ID: 1, OwnerID: 7, Kind: "Home", Line: "1 Main St", City: "Springfield"},
	}, nil)

	rec := env.do(http.MethodGet, "/api/address", "user-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	decodeData(t, rec, &got)
	require.Len(t, got, 2)
	assert.Equal(t, float64(3), got[0]["id"])
	assert.Equal(t, float64(7), got[0]["owner_id"])
	assert.Equal(t, "Work", got[0]["kind"])
	assert.Equal(t, "2 Side St", got[0]["line"])
	assert.Equal(t, true, got[0]["is_default"])
}

func TestAddressHandler_ListIsScopedByAccountKind(t *testing.T) {
	env := newTestEnv(t)
	env.addresses.On("List", mock.Anything, testProvider).Return([]domain.Address{}, nil)

	rec := env.do(http.MethodGet, "/api/address", "provider-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env.addresses.AssertExpectations(t)
}

func TestAddressHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	want := domain.AddressInput{Kind: "Home", Line: "1 Main St", City: "Springfield", IsDefault: true}
	env.addresses.On("Create", mock.Anything, testUser, want).
		Return(&domain.Address{ID: 1, OwnerID: 7, Kind: "Home", Line: "1 Main St", City: "Springfield", IsDefault: true}, nil)

	rec := env.do(http.MethodPost, "/api/address", "user-token", map[string]any{
		"kind": "Home", "line": "1 Main St", "city": "Springfield", "is_default": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got domain.Address
	decodeData(t, rec, &got)
	assert.Equal(t, int64(1), got.ID)
	assert.True(t, got.IsDefault)
}

func TestAddressHandler_Create_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		wantCode  string
		wantField string
	}{
		{"blank city", map[string]any{"kind": "Home", "line": "1 Main St", "city": "   "}, "VALIDATION_ERROR", "city"},
		{"missing line", map[string]any{"kind": "Home", "city": "Springfield"}, "VALIDATION_ERROR", "line"},
		{"malformed json", `{"kind":`, "INVALID_INPUT", ""},
		{"wrong type", `{"kind":"Home","line":"x","city":"y","is_default":"yes"}`, "INVALID_INPUT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.do(http.MethodPost, "/api/address", "user-token", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			e := errorOf(t, rec)
			assert.Equal(t, tt.wantCode, e.Code)
			if tt.wantField != "" {
				assert.Contains(t, e.Fields, tt.wantField)
			}
			env.addresses.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAddressHandler_Update(t *testing.T) {
	env := newTestEnv(t)
	in := domain.AddressInput{Kind: "Work", Line: "2 Side St", City: "Shelbyville"}
	env.addresses.On("Update", mock.Anything, testUser, int64(5), in).
		Return(&domain.Address{ID: 5, OwnerID: 7, Kind: "Work", Line: "2 Side St", City: "Shelbyville"}, nil)

	rec := env.do(http.MethodPut, "/api/address/5", "user-token", map[string]any{
		"kind": "Work", "line": "2 Side St", "city": "Shelbyville",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Address
	decodeData(t, rec, &got)
	assert.Equal(t, "Shelbyville", got.City)
}

func TestAddressHandler_Update_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.addresses.On("Update", mock.Anything, testUser, int64(99), mock.Anything).
		Return(nil, apperrors.NotFound("address", int64(99)))

	rec := env.do(http.MethodPut, "/api/address/99", "user-token", map[string]any{
		"kind": "Work", "line": "2 Side St", "city": "Shelbyville",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorOf(t, rec).Code)
}

func TestAddressHandler_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/address/abc", "/api/address/0", "/api/address/-4"} {
		rec := env.do(http.MethodDelete, path, "user-token", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "INVALID_PARAMETER", errorOf(t, rec).Code)
	}
	env.addresses.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddressHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.addresses.On("Delete", mock.Anything, testUser, int64(1)).Return(nil)

	rec := env.do(http.MethodDelete, "/api/address/1", "user-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	decodeData(t, rec, &got)
	assert.Equal(t, "deleted", got["status"])
	env.addresses.AssertExpectations(t)
}

func TestAddressHandler_StoreFailureHidesCause(t *testing.T) {
	env := newTestEnv(t)
	env.addresses.On("Delete", mock.Anything, testUser, int64(1)).
		Return(apperrors.TransactionFailed(errors.New("pq: deadlock detected on relation addresses")))

	rec := env.do(http.MethodDelete, "/api/address/1", "user-token", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "TRANSACTION_FAILED", errorOf(t, rec).Code)
	assert.NotContains(t, rec.Body.String(), "deadlock")
}

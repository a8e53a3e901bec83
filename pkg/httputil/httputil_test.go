package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/servicehub/pkg/errors"
	"github.com/utafrali/servicehub/pkg/logger"
	"github.com/utafrali/servicehub/pkg/validator"
)

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, Response{Data: "hello"})

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hello", decode(t, rec).Data)
}

func TestWriteData_OmitsErrorField(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]int{"id": 7})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"id":7}}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
		wantLogged bool
	}{
		{"app not found", apperrors.NotFound("address", int64(9)), http.StatusNotFound, "NOT_FOUND", "address with id 9 not found", false},
		{"app unauthorized", apperrors.Unauthorized("missing token"), http.StatusUnauthorized, "UNAUTHORIZED", "missing token", false},
		{"sentinel not found", fmt.Errorf("load: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND", "resource not found", false},
		{"sentinel exists", apperrors.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "resource already exists", false},
		{"store unavailable", apperrors.StoreUnavailable(errors.New("dial tcp 10.1.1.1:5432")), http.StatusInternalServerError, "STORE_UNAVAILABLE", "the data store is unavailable", true},
		{"transaction failed", apperrors.TransactionFailed(errors.New("deadlock detected")), http.StatusInternalServerError, "TRANSACTION_FAILED", "the operation could not be completed", true},
		{"unknown", errors.New("pq: secret table"), http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := bufferLogger()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/address", nil)

			WriteError(rec, req, tt.err, l)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := rec.Body.String()
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
			assert.NotContains(t, body, "10.1.1.1")
			assert.NotContains(t, body, "secret table")
			assert.Equal(t, tt.wantLogged, buf.Len() > 0)
		})
	}
}

func TestWriteError_ValidationError(t *testing.T) {
	type body struct {
		City string `json:"city" validate:"notblank"`
	}
	err := validator.Validate(body{City: " "})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/api/address", nil), err, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must not be blank", resp.Error.Fields["city"])
}

func TestWriteError_AppValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apperrors.Validation(map[string]string{"line": "is too long"})
	WriteError(rec, httptest.NewRequest(http.MethodPut, "/api/address/1", nil), err, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, map[string]string{"line": "is too long"}, resp.Error.Fields)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "req-42")
	req := httptest.NewRequest(http.MethodGet, "/api/address", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	WriteError(rec, req, apperrors.NotFound("address", 1), nil)

	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestWriteError_PrefersRequestLogger(t *testing.T) {
	reqLogger, reqBuf := bufferLogger()
	fallback, fallbackBuf := bufferLogger()

	ctx := logger.NewContext(context.Background(), reqLogger)
	req := httptest.NewRequest(http.MethodGet, "/api/address", nil).WithContext(ctx)

	WriteError(httptest.NewRecorder(), req, errors.New("boom"), fallback)

	assert.Contains(t, reqBuf.String(), "request failed")
	assert.Zero(t, fallbackBuf.Len())
}

func TestWriteBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteBadRequest(rec, httptest.NewRequest(http.MethodPost, "/", nil), "malformed body")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Equal(t, "malformed body", resp.Error.Message)
}

func TestNewPaginatedResponse(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		page      int
		perPage   int
		wantPages int
		wantNext  bool
	}{
		{"partial last page", 25, 1, 10, 3, true},
		{"last page", 25, 3, 10, 3, false},
		{"exact division", 20, 2, 10, 2, false},
		{"empty", 0, 1, 10, 0, false},
		{"zero per page", 5, 1, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaginatedResponse[int](nil, tt.total, tt.page, tt.perPage)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.wantNext, p.HasNext)
			assert.NotNil(t, p.Data)
		})
	}
}

func TestNewPaginatedResponse_JSON(t *testing.T) {
	p := NewPaginatedResponse([]string{"a"}, 1, 1, 20)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":["a"],"total_count":1,"page":1,"per_page":20,"total_pages":1,"has_next":false}`, string(raw))
}

func TestParseID(t *testing.T) {
	tests := []struct {
		param string
		want  int64
		ok    bool
	}{
		{"42", 42, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"9223372036854775808", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			rec := httptest.NewRecorder()
			id, ok := ParseID(rec, tt.param)

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
			if !tt.ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "INVALID_PARAMETER", decode(t, rec).Error.Code)
			}
		})
	}
}

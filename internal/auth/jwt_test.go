package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/servicehub/internal/domain"
)

const testSecret = "test-secret-key-that-is-long-enough"

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager(testSecret, 30*time.Minute)
	owner := domain.Owner{ID: 42, Kind: domain.KindProvider}

	token, expiresAt, err := m.GenerateAccessToken(owner)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, domain.KindProvider, claims.Type)
	assert.Equal(t, "servicehub", claims.Issuer)

	id, err := m.Identify(token)
	require.NoError(t, err)
	assert.Equal(t, "42", id.Subject)
	assert.Equal(t, "provider", id.Kind)

	parsed, err := domain.ParseOwner(id.Subject, id.Kind)
	require.NoError(t, err)
	assert.Equal(t, owner, parsed)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute)
	token, _, err := m.GenerateAccessToken(domain.Owner{ID: 1, Kind: domain.KindUser})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	token, _, err := NewJWTManager(testSecret, time.Minute).GenerateAccessToken(domain.Owner{ID: 1, Kind: domain.KindUser})
	require.NoError(t, err)

	_, err = NewJWTManager("another-secret-key-that-is-long-enough", time.Minute).Identify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTManager_RejectsForeignTokens(t *testing.T) {
	m := NewJWTManager(testSecret, time.Minute)
	exp := jwt.NewNumericDate(time.Now().Add(time.Minute))

	tests := []struct {
		name   string
		claims jwt.Claims
		method jwt.SigningMethod
	}{
		{"unknown kind", &Claims{Type: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: issuer, ExpiresAt: exp}}, jwt.SigningMethodHS256},
		{"missing subject", &Claims{Type: domain.KindUser, RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: exp}}, jwt.SigningMethodHS256},
		{"other issuer", &Claims{Type: domain.KindUser, RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: "elsewhere", ExpiresAt: exp}}, jwt.SigningMethodHS256},
		{"no expiry", &Claims{Type: domain.KindUser, RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: issuer}}, jwt.SigningMethodHS256},
		{"alg none", &Claims{Type: domain.KindUser, RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: issuer, ExpiresAt: exp}}, jwt.SigningMethodNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var key any = []byte(testSecret)
			if tt.method == jwt.SigningMethodNone {
				key = jwt.UnsafeAllowNoneSignatureType
			}
			token, err := jwt.NewWithClaims(tt.method, tt.claims).SignedString(key)
			require.NoError(t, err)

			id, err := m.Identify(token)
			assert.Error(t, err)
			assert.Nil(t, id)
		})
	}
}

func TestJWTManager_Garbage(t *testing.T) {
	_, err := NewJWTManager(testSecret, time.Minute).ValidateAccessToken("not.a.jwt")
	assert.Error(t, err)
}

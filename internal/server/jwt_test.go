package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/bond-onboarding/internal/config"
)

const testJWTSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestJWTService(_ *testing.T, expirationHours int) *JWTService {
	return NewJWTService(&config.JWTConfig{
		Secret:          testJWTSecret,
		Issuer:          config.DefaultJWTIssuer,
		ExpirationHours: expirationHours,
	})
}

func TestJWTService_GenerateToken(t *testing.T) {
	service := setupTestJWTService(t, 24)

	token, err := service.GenerateToken("ops@example.com", uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3, "JWT should have 3 parts separated by dots")

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.GetSubject())
	assert.Equal(t, uuid.Nil, claims.GetCompanyID())
	assert.Equal(t, config.DefaultJWTIssuer, claims.Issuer)
}

func TestJWTService_CompanyScopedToken(t *testing.T) {
	service := setupTestJWTService(t, 24)
	companyID := uuid.New()

	token, err := service.GenerateToken("portal", companyID)
	require.NoError(t, err)

	principal, err := service.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, companyID, principal.GetCompanyID())
}

func TestJWTService_GenerateToken_RequiresSubject(t *testing.T) {
	service := setupTestJWTService(t, 24)

	_, err := service.GenerateToken("", uuid.Nil)
	assert.Error(t, err)
}

func TestJWTService_ValidateToken_Rejections(t *testing.T) {
	service := setupTestJWTService(t, 24)
	now := time.Now()

	sign := func(claims jwt.Claims, secret string) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{name: "empty", token: "", wantErr: "empty"},
		{name: "malformed", token: "not.a.jwt", wantErr: "malformed"},
		{
			name: "wrong secret",
			token: sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject: "ops", Issuer: config.DefaultJWTIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}}, "another-secret-key-of-sufficient-length"),
			wantErr: "signature",
		},
		{
			name: "expired",
			token: sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject: "ops", Issuer: config.DefaultJWTIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			}}, testJWTSecret),
			wantErr: "expired",
		},
		{
			name: "foreign issuer",
			token: sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject: "ops", Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}}, testJWTSecret),
			wantErr: "failed to parse token",
		},
		{
			name: "missing subject",
			token: sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
				Issuer: config.DefaultJWTIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}}, testJWTSecret),
			wantErr: "no subject",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	service := setupTestJWTService(t, 24)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "ops", Issuer: config.DefaultJWTIssuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateToken(s)
	assert.Error(t, err)
}

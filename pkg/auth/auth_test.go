package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
)

func newAuthenticator(t *testing.T, secret string) *Authenticator {
	t.Helper()

	a, err := New(observability.DiscardLogger(), config.AuthConfig{
		Enabled: true,
		Tokens:  config.TokensConfig{SecretKey: secret},
	})
	require.NoError(t, err)

	return a
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(observability.DiscardLogger(), config.AuthConfig{Enabled: true})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndValidate(t *testing.T) {
	a := newAuthenticator(t, "crypt-key")

	token, err := a.Issue("gravekeeper", time.Hour)
	require.NoError(t, err)

	claims, err := a.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "gravekeeper", claims.Subject)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	require.NotNil(t, claims.ExpiresAt)
}

func TestIssueRequiresSubject(t *testing.T) {
	_, err := newAuthenticator(t, "k").Issue("", 0)
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	a := newAuthenticator(t, "crypt-key")

	other := newAuthenticator(t, "another-key")
	foreign, err := other.Issue("gravekeeper", 0)
	require.NoError(t, err)

	past := a.now
	a.now = func() time.Time { return past().Add(-2 * time.Hour) }
	expired, err := a.Issue("gravekeeper", time.Hour)
	require.NoError(t, err)
	a.now = past

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "someone-else",
		Subject: "gravekeeper",
	}).SignedString([]byte("crypt-key"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: DefaultIssuer,
	}).SignedString([]byte("crypt-key"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: expired},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "no subject", token: noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Validate(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	a := newAuthenticator(t, "crypt-key")

	token, err := a.Issue("gravekeeper", time.Hour)
	require.NoError(t, err)

	var seen string

	handler := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + token, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""

			req := httptest.NewRequest(http.MethodPost, "/api/incidents/generate-sop", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)

			if tt.status == http.StatusOK {
				assert.Equal(t, "gravekeeper", seen)
			} else {
				assert.Empty(t, seen)
			}
		})
	}
}

func TestSubjectAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, Subject(req.Context()))
	assert.Equal(t, "x", Subject(WithSubject(req.Context(), "x")))
}

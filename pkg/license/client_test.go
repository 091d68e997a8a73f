package license

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

func TestClient_Validate(t *testing.T) {
	var authorization string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/validate", r.URL.Path)

		authorization = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"active","tier":"premium","expires_at":"2027-01-01T00:00:00Z","features":["workflows"]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL + "/", APIKey: "secret"})

	verdict, err := client.Validate(context.Background(), "community-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", authorization)
	assert.Equal(t, "community-1", verdict.CommunityID)
	assert.Equal(t, models.TierPremium, verdict.Tier)
	assert.Equal(t, models.LicenseStatusActive, verdict.Status)
	assert.Equal(t, []string{"workflows"}, verdict.Features)
	require.NotNil(t, verdict.ExpiresAt)
	assert.Equal(t, 2027, verdict.ExpiresAt.Year())
}

func TestClient_SignedBearerToken(t *testing.T) {
	signingKey := []byte("license-signing-key")
	now := time.Now()

	var token string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		_, _ = w.Write([]byte(`{"status":"active","tier":"free"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL,
		APIKey:     "ignored",
		SigningKey: signingKey,
		Now:        func() time.Time { return now },
	})

	_, err := client.Validate(context.Background(), "community-7")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "community-7", claims.Subject)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantErr: ErrServerUnavailable},
		{name: "forbidden", status: http.StatusForbidden, body: `{"status":"active"}`, wantErr: ErrServerUnavailable},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: ErrMalformedResponse},
		{name: "unknown status", status: http.StatusOK, body: `{"status":"maybe"}`, wantErr: ErrMalformedResponse},
		{name: "missing status", status: http.StatusOK, body: `{"tier":"premium"}`, wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(ClientConfig{BaseURL: server.URL}).Validate(context.Background(), "community-1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient(ClientConfig{
		BaseURL:    "http://127.0.0.1:1",
		HTTPClient: &http.Client{Timeout: 100 * time.Millisecond},
	})

	_, err := client.Validate(context.Background(), "community-1")
	assert.ErrorIs(t, err, ErrServerUnavailable)
}

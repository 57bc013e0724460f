package launcher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
	"github.com/deepslate-launcher/deepslate-core/internal/auth/launcher"
)

func TestHTTPIssuerIssueToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/launcher/token", r.URL.Path)
		assert.Equal(t, "Bearer minecraft-token", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fp-1", body["fingerprint"])
		assert.Equal(t, "PlayerOne", body["username"])
		assert.Equal(t, "11111111222233334444555555555555", body["account_id"])
		assert.Equal(t, "experimental", body["mode"])

		_ = json.NewEncoder(w).Encode(map[string]string{"token": "issued-token"})
	}))
	defer srv.Close()

	issuer := launcher.NewHTTPIssuer(launcher.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})

	token, err := issuer.IssueToken(context.Background(), "minecraft-token", launcher.IssueRequest{
		Fingerprint: "fp-1",
		Username:    "PlayerOne",
		AccountID:   "11111111222233334444555555555555",
		Mode:        domain.ModeExperimental,
	})
	require.NoError(t, err)
	require.Equal(t, "issued-token", token)
}

func TestHTTPIssuerErrors(t *testing.T) {
	t.Parallel()

	t.Run("backend error status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream unavailable"))
		}))
		defer srv.Close()

		issuer := launcher.NewHTTPIssuer(launcher.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})

		_, err := issuer.IssueToken(context.Background(), "minecraft-token", launcher.IssueRequest{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "502")
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": ""})
		}))
		defer srv.Close()

		issuer := launcher.NewHTTPIssuer(launcher.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})

		_, err := issuer.IssueToken(context.Background(), "minecraft-token", launcher.IssueRequest{})
		require.Error(t, err)
	})
}

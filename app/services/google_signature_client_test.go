package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleSignatureClientSetSignature(t *testing.T) {
	ctx := context.Background()

	t.Run("PatchesSendAsSettings", func(t *testing.T) {
		var gotMethod, gotPath, gotAuth string
		var gotBody sendAsSettings

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewGoogleSignatureClientWithBaseURL(StaticTokenSource{AccessToken: "tok-123"}, server.URL)
		err := client.SetSignature(ctx, nil, "jane@acme.test", "<div>sig</div>")
		require.NoError(t, err)

		assert.Equal(t, http.MethodPatch, gotMethod)
		assert.Equal(t, "/gmail/v1/users/jane@acme.test/settings/sendAs/jane@acme.test", gotPath)
		assert.Equal(t, "Bearer tok-123", gotAuth)
		assert.Equal(t, "<div>sig</div>", gotBody.Signature)
	})

	t.Run("SurfacesProviderErrors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"message":"insufficient scopes"}}`))
		}))
		defer server.Close()

		client := NewGoogleSignatureClientWithBaseURL(StaticTokenSource{AccessToken: "tok"}, server.URL)
		err := client.SetSignature(ctx, nil, "jane@acme.test", "<div>sig</div>")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
		assert.Contains(t, err.Error(), "insufficient scopes")
	})

	t.Run("TokenFailureShortCircuits", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			t.Error("request must not reach the provider without a token")
		}))
		defer server.Close()

		client := NewGoogleSignatureClientWithBaseURL(StaticTokenSource{}, server.URL)
		err := client.SetSignature(ctx, nil, "jane@acme.test", "<div>sig</div>")
		require.Error(t, err)
	})
}

func TestGoogleSignatureClientFetchSignature(t *testing.T) {
	ctx := context.Background()

	t.Run("DecodesDeployedSignature", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			json.NewEncoder(w).Encode(sendAsSettings{Signature: "<div>deployed</div>"})
		}))
		defer server.Close()

		client := NewGoogleSignatureClientWithBaseURL(StaticTokenSource{AccessToken: "tok"}, server.URL)
		sig, err := client.FetchSignature(ctx, nil, "jane@acme.test")
		require.NoError(t, err)
		assert.Equal(t, "<div>deployed</div>", sig)
	})

	t.Run("NonOKStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewGoogleSignatureClientWithBaseURL(StaticTokenSource{AccessToken: "tok"}, server.URL)
		_, err := client.FetchSignature(ctx, nil, "jane@acme.test")
		require.Error(t, err)
	})
}

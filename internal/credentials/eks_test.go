package credentials

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTokenFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestEKSPodProviderSendsBearerToken(t *testing.T) {
	tokenFile := writeTokenFile(t, "  bearer-token-xyz\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bearer-token-xyz", r.Header.Get("Authorization"))
		w.Write([]byte(`{"AccessKeyId":"AKIAEKS","SecretAccessKey":"secret","Token":"tok","Expiration":"2030-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	p := &EKSPodProvider{URL: srv.URL, TokenFile: tokenFile, Client: srv.Client()}
	tok, err := p.FetchToken(t.Context())
	require.NoError(t, err)
	require.Equal(t, "AKIAEKS", tok.Credential.AccessKeyID)
}

func TestEKSPodProviderMissingTokenFile(t *testing.T) {
	p := &EKSPodProvider{URL: "http://example.com", TokenFile: "/nonexistent/path", Client: http.DefaultClient}
	_, err := p.FetchToken(t.Context())
	require.Error(t, err)
}

func TestNewEKSPodProviderFallsBackToEnv(t *testing.T) {
	tokenFile := writeTokenFile(t, "x")
	t.Setenv(eksTokenFileEnv, tokenFile)

	p := NewEKSPodProvider("http://example.com", "")
	require.Equal(t, tokenFile, p.TokenFile)
}

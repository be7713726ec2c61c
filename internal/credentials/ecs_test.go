package credentials

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestECSProviderFetchesFromConfiguredURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"AccessKeyId":"AKIAECS","SecretAccessKey":"secret","Token":"tok","Expiration":"2030-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	p := &ECSProvider{URL: srv.URL, Client: srv.Client()}
	tok, err := p.FetchToken(t.Context())
	require.NoError(t, err)
	require.Equal(t, "AKIAECS", tok.Credential.AccessKeyID)
}

func TestNewECSProviderPrefersExplicitFullURI(t *testing.T) {
	p := NewECSProvider("", "https://example.com/creds")
	require.Equal(t, "https://example.com/creds", p.URL)
}

func TestNewECSProviderResolvesRelativeURI(t *testing.T) {
	p := NewECSProvider("/v2/credentials/abc", "")
	require.Equal(t, ecsDefaultHost+"/v2/credentials/abc", p.URL)
}

func TestECSProviderErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := &ECSProvider{URL: srv.URL, Client: srv.Client()}
	_, err := p.FetchToken(t.Context())
	require.Error(t, err)
}

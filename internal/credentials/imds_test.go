package credentials

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIMDSProviderV2HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/latest/api/token":
			require.Equal(t, "600", r.Header.Get("X-aws-ec2-metadata-token-ttl-seconds"))
			w.Write([]byte("token-abc"))
		case r.URL.Path == "/"+imdsCredentialsPath+"/":
			require.Equal(t, "token-abc", r.Header.Get(imdsTokenHeader))
			w.Write([]byte("my-role"))
		case r.URL.Path == "/"+imdsCredentialsPath+"/my-role":
			require.Equal(t, "token-abc", r.Header.Get(imdsTokenHeader))
			w.Write([]byte(`{"AccessKeyId":"AKIA","SecretAccessKey":"secret","Token":"sess","Expiration":"2030-01-01T00:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewIMDSProvider(srv.URL, false)
	tok, err := p.FetchToken(t.Context())
	require.NoError(t, err)
	require.Equal(t, "AKIA", tok.Credential.AccessKeyID)
	require.Equal(t, "secret", tok.Credential.SecretKey())
	require.Equal(t, "sess", tok.Credential.SessionToken())
}

func TestIMDSProviderV1FallbackOnForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/latest/api/token":
			w.WriteHeader(http.StatusForbidden)
		case r.URL.Path == "/"+imdsCredentialsPath+"/":
			require.Empty(t, r.Header.Get(imdsTokenHeader))
			w.Write([]byte("my-role"))
		case r.URL.Path == "/"+imdsCredentialsPath+"/my-role":
			require.Empty(t, r.Header.Get(imdsTokenHeader))
			w.Write([]byte(`{"AccessKeyId":"AKIA","SecretAccessKey":"secret","Token":"","Expiration":"2030-01-01T00:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewIMDSProvider(srv.URL, true)
	tok, err := p.FetchToken(t.Context())
	require.NoError(t, err)
	require.Equal(t, "AKIA", tok.Credential.AccessKeyID)
}

func TestIMDSProviderV1FallbackDisabledFailsOnForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewIMDSProvider(srv.URL, false)
	_, err := p.FetchToken(t.Context())
	require.Error(t, err)
}

func TestIMDSProviderDefaultEndpoint(t *testing.T) {
	p := NewIMDSProvider("", false)
	require.Equal(t, imdsDefaultEndpoint, p.Endpoint)
}

package credentials

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const createSessionFixture = `<CreateSessionOutput>
  <Credentials>
    <AccessKeyId>AKIASESSION</AccessKeyId>
    <SecretAccessKey>sessionsecret</SecretAccessKey>
    <SessionToken>sessiontok</SessionToken>
  </Credentials>
</CreateSessionOutput>`

func TestSessionProviderSignsAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "session", r.URL.RawQuery)
		require.NotEmpty(t, r.Header.Get("Authorization"))
		w.Write([]byte(createSessionFixture))
	}))
	defer srv.Close()

	base := NewCache(NewStaticProvider("AKIABASE", "basesecret", ""))
	p := &SessionProvider{Endpoint: srv.URL, Region: "us-east-1", Base: base, Client: srv.Client()}

	tok, err := p.FetchToken(t.Context())
	require.NoError(t, err)
	require.Equal(t, "AKIASESSION", tok.Credential.AccessKeyID)
	require.Equal(t, "sessionsecret", tok.Credential.SecretKey())
	require.Equal(t, "sessiontok", tok.Credential.SessionToken())
}

// TestSessionProviderExpiryFixedAtFiveMinutes checks the CreateSession
// response's own (absent) expiry is ignored: the client always treats the
// issued credential as valid for exactly five minutes from fetch time.
func TestSessionProviderExpiryFixedAtFiveMinutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(createSessionFixture))
	}))
	defer srv.Close()

	base := NewCache(NewStaticProvider("AKIABASE", "basesecret", ""))
	p := &SessionProvider{Endpoint: srv.URL, Region: "us-east-1", Base: base, Client: srv.Client()}

	before := time.Now()
	tok, err := p.FetchToken(t.Context())
	require.NoError(t, err)
	after := time.Now()

	require.False(t, tok.Expiry.Before(before.Add(sessionExpiry)))
	require.False(t, tok.Expiry.After(after.Add(sessionExpiry+time.Second)))
}

func TestSessionProviderPropagatesBaseCredentialError(t *testing.T) {
	base := NewCache(&countingProvider{err: errBoom})
	p := &SessionProvider{Endpoint: "http://example.invalid", Region: "us-east-1", Base: base, Client: http.DefaultClient}

	_, err := p.FetchToken(t.Context())
	require.Error(t, err)
}

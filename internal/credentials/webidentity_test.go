package credentials

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const assumeRoleFixture = `<AssumeRoleWithWebIdentityResponse>
  <AssumeRoleWithWebIdentityResult>
    <Credentials>
      <AccessKeyId>AKIAWEBID</AccessKeyId>
      <SecretAccessKey>secretweb</SecretAccessKey>
      <SessionToken>sessiontok</SessionToken>
      <Expiration>2030-01-01T00:00:00Z</Expiration>
    </Credentials>
  </AssumeRoleWithWebIdentityResult>
</AssumeRoleWithWebIdentityResponse>`

func TestWebIdentityProviderExchangesToken(t *testing.T) {
	tokenFile := writeTokenFile(t, "projected-sa-token")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "AssumeRoleWithWebIdentity", r.URL.Query().Get("Action"))
		require.Equal(t, "arn:aws:iam::123456789012:role/my-role", r.URL.Query().Get("RoleArn"))
		require.Equal(t, "projected-sa-token", r.URL.Query().Get("WebIdentityToken"))
		w.Write([]byte(assumeRoleFixture))
	}))
	defer srv.Close()

	p := &WebIdentityProvider{
		TokenFile:       tokenFile,
		RoleARN:         "arn:aws:iam::123456789012:role/my-role",
		RoleSessionName: "session1",
		Endpoint:        srv.URL,
		Client:          srv.Client(),
	}

	tok, err := p.FetchToken(t.Context())
	require.NoError(t, err)
	require.Equal(t, "AKIAWEBID", tok.Credential.AccessKeyID)
	require.Equal(t, "secretweb", tok.Credential.SecretKey())
	require.Equal(t, "sessiontok", tok.Credential.SessionToken())
	require.Equal(t, 2030, tok.Expiry.Year())
}

func TestNewWebIdentityProviderDefaultEndpoint(t *testing.T) {
	p := NewWebIdentityProvider("/tok", "arn", "sess", "")
	require.Equal(t, stsDefaultEndpoint, p.Endpoint)
}

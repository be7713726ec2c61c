package credentials

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"github.com/cobaltfs/objectstore/internal/sigv4"
)

// sessionExpiry is fixed by the CreateSession API contract: issued
// credentials are valid for exactly five minutes regardless of what the
// response body claims.
//
// https://docs.aws.amazon.com/AmazonS3/latest/API/API_CreateSession.html
const sessionExpiry = 5 * time.Minute

type createSessionOutput struct {
	XMLName     xml.Name `xml:"CreateSessionOutput"`
	Credentials struct {
		AccessKeyID     string `xml:"AccessKeyId"`
		SecretAccessKey string `xml:"SecretAccessKey"`
		SessionToken    string `xml:"SessionToken"`
	} `xml:"Credentials"`
}

// SessionProvider implements the S3 Express One Zone CreateSession flow: a
// base credential provider signs a GET to "{bucket-endpoint}?session",
// whose response carries bucket-scoped temporary credentials valid for
// five minutes.
type SessionProvider struct {
	Endpoint string
	Region   string
	Base     *Cache
	Client   *http.Client
}

// NewSessionProvider builds a SessionProvider that authorizes its
// CreateSession request using credentials drawn from base.
func NewSessionProvider(endpoint, region string, base *Cache) *SessionProvider {
	return &SessionProvider{Endpoint: endpoint, Region: region, Base: base, Client: http.DefaultClient}
}

func (p *SessionProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

// FetchToken implements Provider.
func (p *SessionProvider) FetchToken(ctx context.Context) (*TemporaryToken, error) {
	base, err := p.Base.GetCredential(ctx)
	if err != nil {
		return nil, wrapFetch("session", err)
	}

	req, err := http.NewRequest(http.MethodGet, p.Endpoint+"?session", nil)
	if err != nil {
		return nil, wrapFetch("session", err)
	}

	authorizer := sigv4.NewAuthorizer(base.Credential, p.Region, "s3")
	if err := authorizer.Authorize(req, sigv4.PayloadHashInput{}, time.Time{}); err != nil {
		return nil, wrapFetch("session", err)
	}

	body, err := readBody(ctx, p.client(), req)
	if err != nil {
		return nil, wrapFetch("session", err)
	}

	var resp createSessionOutput
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, wrapFetch("session", err)
	}

	return &TemporaryToken{
		Credential: sigv4.NewCredential(resp.Credentials.AccessKeyID, resp.Credentials.SecretAccessKey, resp.Credentials.SessionToken),
		Expiry:     time.Now().Add(sessionExpiry),
	}, nil
}

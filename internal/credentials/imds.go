package credentials

import (
	"context"
	"net/http"
	"strings"
)

const (
	imdsDefaultEndpoint = "http://169.254.169.254"
	imdsCredentialsPath = "latest/meta-data/iam/security-credentials"
	imdsTokenHeader     = "X-aws-ec2-metadata-token"
)

// IMDSProvider sources credentials from the EC2 instance metadata service,
// preferring the session-oriented IMDSv2 token flow and optionally falling
// back to unauthenticated IMDSv1 requests if the token endpoint answers
// 403 Forbidden.
type IMDSProvider struct {
	Endpoint       string
	IMDSv1Fallback bool
	Client         *http.Client
}

// NewIMDSProvider builds an IMDSProvider; an empty endpoint defaults to the
// link-local metadata address.
func NewIMDSProvider(endpoint string, imdsv1Fallback bool) *IMDSProvider {
	if endpoint == "" {
		endpoint = imdsDefaultEndpoint
	}
	return &IMDSProvider{Endpoint: endpoint, IMDSv1Fallback: imdsv1Fallback, Client: http.DefaultClient}
}

func (p *IMDSProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

// FetchToken implements Provider.
func (p *IMDSProvider) FetchToken(ctx context.Context) (*TemporaryToken, error) {
	token, err := p.fetchSessionToken(ctx)
	if err != nil {
		if !p.IMDSv1Fallback || !isForbidden(err) {
			return nil, wrapFetch("imds", err)
		}
		token = "" // fall back to IMDSv1: unauthenticated requests
	}

	role, err := p.fetchRole(ctx, token)
	if err != nil {
		return nil, wrapFetch("imds", err)
	}

	creds, err := p.fetchCredentials(ctx, token, role)
	if err != nil {
		return nil, wrapFetch("imds", err)
	}
	return creds, nil
}

func (p *IMDSProvider) fetchSessionToken(ctx context.Context) (string, error) {
	req, err := http.NewRequest(http.MethodPut, p.Endpoint+"/latest/api/token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-aws-ec2-metadata-token-ttl-seconds", "600")
	body, err := readBody(ctx, p.client(), req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (p *IMDSProvider) fetchRole(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, p.Endpoint+"/"+imdsCredentialsPath+"/", nil)
	if err != nil {
		return "", err
	}
	if token != "" {
		req.Header.Set(imdsTokenHeader, token)
	}
	body, err := readBody(ctx, p.client(), req)
	if err != nil {
		return "", err
	}
	role := strings.TrimSpace(string(body))
	if idx := strings.IndexByte(role, '\n'); idx >= 0 {
		role = role[:idx] // IMDS may list multiple roles; use the first
	}
	return role, nil
}

func (p *IMDSProvider) fetchCredentials(ctx context.Context, token, role string) (*TemporaryToken, error) {
	req, err := http.NewRequest(http.MethodGet, p.Endpoint+"/"+imdsCredentialsPath+"/"+role, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set(imdsTokenHeader, token)
	}
	return doInstanceRequest(ctx, p.client(), req)
}

// statusError carries an HTTP status code so the IMDSv1-fallback path can
// distinguish a 403 from every other failure mode.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return "unexpected status " + http.StatusText(e.code) }

func isForbidden(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusForbidden
}

package credentials

import (
	"context"
	"net/http"
	"os"
)

const (
	ecsRelativeURIEnv = "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI"
	ecsFullURIEnv     = "AWS_CONTAINER_CREDENTIALS_FULL_URI"
	ecsDefaultHost    = "http://169.254.170.2"
)

// ECSProvider sources credentials from the single-shot ECS task metadata
// endpoint: one unauthenticated GET returning the same document shape as
// IMDS.
type ECSProvider struct {
	URL    string
	Client *http.Client
}

// NewECSProvider resolves the ECS credentials URL from explicit
// configuration, falling back to the container's relative/full URI
// environment variables.
func NewECSProvider(relativeURI, fullURI string) *ECSProvider {
	url := fullURI
	if url == "" {
		url = os.Getenv(ecsFullURIEnv)
	}
	if url == "" {
		rel := relativeURI
		if rel == "" {
			rel = os.Getenv(ecsRelativeURIEnv)
		}
		if rel != "" {
			url = ecsDefaultHost + rel
		}
	}
	return &ECSProvider{URL: url, Client: http.DefaultClient}
}

func (p *ECSProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

// FetchToken implements Provider.
func (p *ECSProvider) FetchToken(ctx context.Context) (*TemporaryToken, error) {
	req, err := http.NewRequest(http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, wrapFetch("ecs", err)
	}
	token, err := doInstanceRequest(ctx, p.client(), req)
	if err != nil {
		return nil, wrapFetch("ecs", err)
	}
	return token, nil
}

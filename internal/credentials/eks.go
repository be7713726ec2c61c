package credentials

import (
	"context"
	"net/http"
	"os"
	"strings"
)

const eksTokenFileEnv = "AWS_CONTAINER_AUTHORIZATION_TOKEN_FILE"

// EKSPodProvider sources credentials from the EKS Pod Identity agent: a
// bearer token read from disk is presented as the Authorization header on
// a single GET to the credentials endpoint. Go has no equivalent of
// dispatching the token-file read to a blocking thread pool only when a
// cooperative runtime is detected; callers that want the read off their
// own goroutine construct this provider with a PoolExecutor-backed caller
// instead, same as the local filesystem backend.
type EKSPodProvider struct {
	URL       string
	TokenFile string
	Client    *http.Client
}

// NewEKSPodProvider builds an EKSPodProvider; an empty tokenFile falls
// back to the AWS_CONTAINER_AUTHORIZATION_TOKEN_FILE environment variable.
func NewEKSPodProvider(url, tokenFile string) *EKSPodProvider {
	if tokenFile == "" {
		tokenFile = os.Getenv(eksTokenFileEnv)
	}
	return &EKSPodProvider{URL: url, TokenFile: tokenFile, Client: http.DefaultClient}
}

func (p *EKSPodProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

// FetchToken implements Provider.
func (p *EKSPodProvider) FetchToken(ctx context.Context) (*TemporaryToken, error) {
	raw, err := os.ReadFile(p.TokenFile)
	if err != nil {
		return nil, wrapFetch("eks", err)
	}
	token := strings.TrimSpace(string(raw))

	req, err := http.NewRequest(http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, wrapFetch("eks", err)
	}
	req.Header.Set("Authorization", token)

	result, err := doInstanceRequest(ctx, p.client(), req)
	if err != nil {
		return nil, wrapFetch("eks", err)
	}
	return result, nil
}

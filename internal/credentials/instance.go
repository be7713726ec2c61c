package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cobaltfs/objectstore/internal/sigv4"
)

// instanceCredentials is the JSON shape shared by IMDS, ECS task roles, and
// EKS Pod Identity: all three endpoints return this document.
type instanceCredentials struct {
	AccessKeyID     string    `json:"AccessKeyId"`
	SecretAccessKey string    `json:"SecretAccessKey"`
	Token           string    `json:"Token"`
	Expiration      time.Time `json:"Expiration"`
}

func (c instanceCredentials) toToken() *TemporaryToken {
	return &TemporaryToken{
		Credential: sigv4.NewCredential(c.AccessKeyID, c.SecretAccessKey, c.Token),
		Expiry:     c.Expiration,
	}
}

// doRequest runs req and decodes a 2xx JSON body as instanceCredentials,
// closing the response body in every path.
func doInstanceRequest(ctx context.Context, client *http.Client, req *http.Request) (*TemporaryToken, error) {
	req = req.WithContext(ctx)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	var creds instanceCredentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("decoding credentials response: %w", err)
	}
	return creds.toToken(), nil
}

func readBody(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	req = req.WithContext(ctx)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}
	return body, nil
}

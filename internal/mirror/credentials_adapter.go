package mirror

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/cobaltfs/objectstore/internal/credentials"
)

// credentialsAdapter satisfies aws.CredentialsProvider by drawing tokens
// from our own provider chain (internal/credentials), so the SDK client
// used to mirror blobs upstream authenticates through the same
// IMDS/ECS/EKS/web-identity discovery this repository implements rather
// than duplicating it via the SDK's own default chain. That duplication
// is also what would make the adapter pointless against non-AWS
// S3-compatible endpoints the SDK's chain doesn't anticipate.
type credentialsAdapter struct {
	cache *credentials.Cache
}

// newCredentialsAdapter wraps cache as an aws.CredentialsProvider.
func newCredentialsAdapter(cache *credentials.Cache) aws.CredentialsProvider {
	return &credentialsAdapter{cache: cache}
}

// Retrieve implements aws.CredentialsProvider.
func (a *credentialsAdapter) Retrieve(ctx context.Context) (aws.Credentials, error) {
	token, err := a.cache.GetCredential(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}

	creds := aws.Credentials{
		AccessKeyID:     token.Credential.AccessKeyID,
		SecretAccessKey: token.Credential.SecretKey(),
		SessionToken:    token.Credential.SessionToken(),
		Source:          "objectstore/internal/credentials",
	}
	if !token.Expiry.IsZero() {
		creds.CanExpire = true
		creds.Expires = token.Expiry
	}
	return creds, nil
}

// Package credentials implements the temporary-credential provider chain
// used to authorize outbound requests against an upstream S3-compatible
// store: instance metadata (IMDS), ECS task roles, EKS Pod Identity,
// AssumeRoleWithWebIdentity, and S3 Express CreateSession. Every provider
// returns a TemporaryToken wrapping a *sigv4.Credential, cached and
// refreshed by Cache.
package credentials

import (
	"context"
	"time"

	"github.com/cobaltfs/objectstore/internal/sigv4"
)

// TemporaryToken pairs a credential with the instant it stops being valid.
// A zero Expiry means the credential never expires (e.g. static keys).
type TemporaryToken struct {
	Credential *sigv4.Credential
	Expiry     time.Time
}

// expired reports whether the token is unusable at now, given margin of
// safety before the literal expiry instant. A zero Expiry never expires.
func (t *TemporaryToken) expired(now time.Time, margin time.Duration) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry.Add(-margin))
}

// Provider fetches a fresh TemporaryToken. Implementations perform network
// I/O and must be wrapped in a Cache for repeated use.
type Provider interface {
	FetchToken(ctx context.Context) (*TemporaryToken, error)
}

// StaticProvider always returns the same never-expiring credential, for
// deployments that configure long-term keys directly rather than via a
// metadata service.
type StaticProvider struct {
	token *TemporaryToken
}

// NewStaticProvider builds a StaticProvider from a fixed credential triple.
func NewStaticProvider(accessKeyID, secretKey, sessionToken string) *StaticProvider {
	return &StaticProvider{token: &TemporaryToken{
		Credential: sigv4.NewCredential(accessKeyID, secretKey, sessionToken),
	}}
}

// FetchToken implements Provider.
func (p *StaticProvider) FetchToken(ctx context.Context) (*TemporaryToken, error) {
	return p.token, nil
}

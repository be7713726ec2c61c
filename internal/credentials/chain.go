package credentials

import (
	"fmt"

	"github.com/cobaltfs/objectstore/internal/config"
)

// NewFromConfig builds the Provider selected by cfg.Provider, wrapped in a
// Cache, or (nil, nil) if no provider is configured.
func NewFromConfig(cfg config.CredentialsConfig) (*Cache, error) {
	var provider Provider

	switch cfg.Provider {
	case "":
		return nil, nil
	case "static":
		provider = NewStaticProvider(cfg.Static.AccessKeyID, cfg.Static.SecretAccessKey, cfg.Static.SessionToken)
	case "imds":
		provider = NewIMDSProvider(cfg.IMDSEndpoint, true)
	case "ecs":
		provider = NewECSProvider(cfg.ECSRelativeURI, cfg.ECSFullURI)
	case "eks":
		// EKS Pod Identity reuses the ECS container-credentials full-URI
		// env var/setting as its endpoint.
		provider = NewEKSPodProvider(cfg.ECSFullURI, cfg.EKSTokenFile)
	case "web_identity":
		provider = NewWebIdentityProvider(cfg.WebIdentityTokenFile, cfg.RoleARN, cfg.RoleSessionName, cfg.STSEndpoint)
	default:
		return nil, fmt.Errorf("credentials: unknown provider %q", cfg.Provider)
	}

	return NewCache(provider), nil
}

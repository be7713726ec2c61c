package credentials

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cobaltfs/objectstore/internal/config"
)

func TestNewFromConfigEmptyProvider(t *testing.T) {
	cache, err := NewFromConfig(config.CredentialsConfig{})
	require.NoError(t, err)
	require.Nil(t, cache)
}

func TestNewFromConfigStatic(t *testing.T) {
	cache, err := NewFromConfig(config.CredentialsConfig{
		Provider: "static",
		Static: config.StaticCredentialsConfig{
			AccessKeyID:     "AKIA",
			SecretAccessKey: "secret",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, cache)

	tok, err := cache.GetCredential(t.Context())
	require.NoError(t, err)
	require.Equal(t, "AKIA", tok.Credential.AccessKeyID)
}

func TestNewFromConfigUnknownProvider(t *testing.T) {
	_, err := NewFromConfig(config.CredentialsConfig{Provider: "bogus"})
	require.Error(t, err)
}

func TestNewFromConfigEachKnownProviderBuilds(t *testing.T) {
	for _, provider := range []string{"imds", "ecs", "eks", "web_identity"} {
		cache, err := NewFromConfig(config.CredentialsConfig{Provider: provider})
		require.NoError(t, err, provider)
		require.NotNil(t, cache, provider)
	}
}

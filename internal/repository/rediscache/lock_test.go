package rediscache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockValueKeyNamespacesTheLockKey(t *testing.T) {
	require.Equal(t, "lock:token:my-lock", lockValueKey("my-lock"))
	require.NotEqual(t, lockValueKey("a"), lockValueKey("b"))
}

func TestTokenBookkeepingRoundTrip(t *testing.T) {
	c := &Client{}
	require.Equal(t, "", c.tokenFor("missing"))

	c.rememberToken("key", "token-1")
	require.Equal(t, "token-1", c.tokenFor("key"))

	c.forgetToken("key")
	require.Equal(t, "", c.tokenFor("key"))
}

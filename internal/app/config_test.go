package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/tessera-pm/tessera/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 30*time.Second, cfg.ResolverCacheTTL)
	require.True(t, cfg.ResolverCacheEnabled)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("RESOLVER_CACHE_TTL", "5s")
	t.Setenv("RESOLVER_CACHE_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 5*time.Second, cfg.ResolverCacheTTL)
	require.False(t, cfg.ResolverCacheEnabled)
}

func TestInTestMode(t *testing.T) {
	// The guard package forces test mode for every test binary.
	RefreshTestMode()
	require.True(t, InTestMode())
}

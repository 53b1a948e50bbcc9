// ABOUTME: Tests for the init subcommand and the shipped starter config
// ABOUTME: The default config must keep API routes on the JSON error path

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/lantern/internal/config"
)

func TestRunInit_WritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	t.Setenv("LANTERN_CONFIG", path)
	t.Setenv("LANTERN_JWT_SECRET", "test-secret")

	require.NoError(t, runInit())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "lantern.app", cfg.Tenancy.RootDomain)

	// Page routes redirect to login; API routes must stay unguarded by the
	// gate so they answer unauthenticated calls with their own 401 JSON
	assert.Equal(t, []string{"/dashboard"}, cfg.Tenancy.ProtectedPrefixes)
	assert.NotContains(t, cfg.Tenancy.ProtectedPrefixes, "/api")
}

func TestRunInit_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	t.Setenv("LANTERN_CONFIG", path)
	t.Setenv("LANTERN_JWT_SECRET", "test-secret")

	require.NoError(t, runInit())
	assert.Error(t, runInit())
}

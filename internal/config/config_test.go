// ABOUTME: Tests for configuration loading
// ABOUTME: YAML parsing, env var expansion, duration parsing, defaults, validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a temp YAML file and returns its path
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
server:
  http_addr: "0.0.0.0:9090"
database:
  path: "/tmp/lantern.db"
auth:
  jwt_secret: "super-secret"
  session_ttl: "24h"
  otp_ttl: "5m"
tenancy:
  root_domain: "lantern.app"
  protected_prefixes:
    - "/dashboard"
    - "/api"
logging:
  level: "debug"
  format: "json"
metrics:
  enabled: true
  path: "/metrics"
`

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/lantern.db", cfg.Database.Path)
	assert.Equal(t, "super-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, "lantern.app", cfg.Tenancy.RootDomain)
	assert.Equal(t, []string{"/dashboard", "/api"}, cfg.Tenancy.ProtectedPrefixes)
	assert.False(t, cfg.Tenancy.AllowMissingTenant)
	assert.False(t, cfg.Auth.AllowAnonymousTransfer)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  path: "/tmp/lantern.db"
auth:
  jwt_secret: "s"
tenancy:
  root_domain: "lantern.app"
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, DefaultSessionTTL, cfg.Auth.SessionTTL)
	assert.Equal(t, DefaultOTPTTL, cfg.Auth.OTPTTL)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("LANTERN_TEST_SECRET", "from-env")
	t.Setenv("LANTERN_TEST_DOMAIN", "lantern.app")

	cfg, err := Load(writeConfig(t, `
database:
  path: "/tmp/lantern.db"
auth:
  jwt_secret: "${LANTERN_TEST_SECRET}"
tenancy:
  root_domain: "${LANTERN_TEST_DOMAIN}"
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "lantern.app", cfg.Tenancy.RootDomain)
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	// ${...} for an unset variable expands to empty, which the required-field
	// check then rejects
	_, err := Load(writeConfig(t, `
database:
  path: "/tmp/lantern.db"
auth:
  jwt_secret: "${LANTERN_DEFINITELY_UNSET}"
tenancy:
  root_domain: "lantern.app"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			"missing database path",
			"auth:\n  jwt_secret: s\ntenancy:\n  root_domain: lantern.app\n",
			"database.path",
		},
		{
			"missing jwt secret",
			"database:\n  path: /tmp/x.db\ntenancy:\n  root_domain: lantern.app\n",
			"jwt_secret",
		},
		{
			"missing root domain",
			"database:\n  path: /tmp/x.db\nauth:\n  jwt_secret: s\n",
			"root_domain",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  path: "/tmp/lantern.db"
auth:
  jwt_secret: "s"
  session_ttl: "soon"
tenancy:
  root_domain: "lantern.app"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_ttl")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "{not yaml: ["))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-0123456789abcdefghij"

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  string
		testFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "gcp defaults",
			envVars: map[string]string{
				"MAILER_PROVIDER_GCP_PROJECT_ID": "molly-test",
				"MAILER_AUTH_JWT_SECRET":         testSecret,
			},
			testFunc: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ProviderGCP, cfg.Provider.Type)
				assert.Equal(t, "molly-test", cfg.Provider.GCP.ProjectID)
				assert.Equal(t, int64(100), cfg.Classes.Ephemeral.Cost)
				assert.Equal(t, 2*time.Hour, cfg.Classes.Ephemeral.Duration)
				assert.Equal(t, int64(2000), cfg.Classes.Persistent.Cost)
				assert.Equal(t, 12*time.Hour, cfg.Classes.Persistent.Duration)
				assert.Equal(t, "e2-standard-2", cfg.Classes.Ephemeral.MachineType)
				assert.Equal(t, "pd-ssd", cfg.Classes.Persistent.DiskType)
				assert.Equal(t, int64(10), cfg.Classes.Persistent.DiskSizeGB)
				assert.Equal(t, []string{"us-central1-a"}, cfg.Placement.Zones)
				assert.Equal(t, 2, cfg.Placement.PerRegionUserCap)
				assert.Equal(t, 5000, cfg.Probe.Port)
				assert.Equal(t, 30, cfg.Probe.MaxAttempts)
				assert.Equal(t, 10*time.Second, cfg.Probe.RetryDelay)
				assert.Equal(t, 60*time.Second, cfg.Orchestrator.QuiescenceWindow)
				assert.Equal(t, 10, cfg.Orchestrator.IPRotationMaxAttempts)
				assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
				assert.Equal(t, LeaseBackendMemory, cfg.Lease.Backend)
				assert.Equal(t, []int{22, 80, 443, 5000}, cfg.Firewall.Ports)
			},
		},
		{
			name: "hetzner via alternative token variable",
			envVars: map[string]string{
				"MAILER_PROVIDER_TYPE":   "hetzner",
				"HCLOUD_TOKEN":           "hcloud-token",
				"MAILER_AUTH_JWT_SECRET": testSecret,
			},
			testFunc: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "hcloud-token", cfg.Provider.Hetzner.APIToken)
				assert.Equal(t, "cx22", cfg.Classes.Ephemeral.MachineType)
				assert.Equal(t, []string{"nbg1"}, cfg.Placement.Zones)
				assert.Equal(t, "ubuntu-22.04", cfg.Provider.Hetzner.Image)
			},
		},
		{
			name: "overrides durations and ints",
			envVars: map[string]string{
				"MAILER_PROVIDER_GCP_PROJECT_ID":          "p",
				"MAILER_AUTH_JWT_SECRET":                  testSecret,
				"MAILER_CLASSES_EPHEMERAL_DURATION":       "90m",
				"MAILER_CLASSES_PERSISTENT_COST":          "2500",
				"MAILER_ORCHESTRATOR_QUIESCENCE_WINDOW":   "2m",
				"MAILER_PLACEMENT_PER_REGION_USER_CAP":    "3",
				"MAILER_SERVICE_SHUTDOWN_TIMEOUT":         "45s",
				"MAILER_LOG_LEVEL":                        "debug",
			},
			testFunc: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 90*time.Minute, cfg.Classes.Ephemeral.Duration)
				assert.Equal(t, int64(2500), cfg.Classes.Persistent.Cost)
				assert.Equal(t, 2*time.Minute, cfg.Orchestrator.QuiescenceWindow)
				assert.Equal(t, 3, cfg.Placement.PerRegionUserCap)
				assert.Equal(t, 45*time.Second, cfg.Service.ShutdownTimeout)
				assert.Equal(t, "debug", cfg.Log.Level)
			},
		},
		{
			name: "missing jwt secret",
			envVars: map[string]string{
				"MAILER_PROVIDER_GCP_PROJECT_ID": "p",
			},
			wantErr: "auth.jwt_secret is required",
		},
		{
			name: "missing hetzner token",
			envVars: map[string]string{
				"MAILER_PROVIDER_TYPE":   "hetzner",
				"MAILER_AUTH_JWT_SECRET": testSecret,
			},
			wantErr: "provider.hetzner.api_token is required",
		},
		{
			name: "redis lease without address",
			envVars: map[string]string{
				"MAILER_PROVIDER_GCP_PROJECT_ID": "p",
				"MAILER_AUTH_JWT_SECRET":         testSecret,
				"MAILER_LEASE_BACKEND":           "redis",
			},
			wantErr: "redis.addr is required",
		},
		{
			name: "unknown provider",
			envVars: map[string]string{
				"MAILER_PROVIDER_TYPE":   "aws",
				"MAILER_AUTH_JWT_SECRET": testSecret,
			},
			wantErr: "invalid provider.type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HCLOUD_TOKEN", "")
			t.Setenv("GOOGLE_CLOUD_PROJECT", "")
			setEnv(t, tt.envVars)

			cfg, err := LoadFromEnv()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.testFunc(t, cfg)
		})
	}
}

func TestLoadWithPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
provider:
  type: gcp
  gcp:
    project_id: from-file
placement:
  zones: [europe-west1-b, us-east1-c]
classes:
  ephemeral:
    cost: 150
probe:
  max_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("MAILER_AUTH_JWT_SECRET", testSecret)
	t.Setenv("MAILER_PROBE_MAX_ATTEMPTS", "7")

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Provider.GCP.ProjectID)
	assert.Equal(t, []string{"europe-west1-b", "us-east1-c"}, cfg.Placement.Zones)
	assert.Equal(t, int64(150), cfg.Classes.Ephemeral.Cost)
	assert.Equal(t, 7, cfg.Probe.MaxAttempts, "env overrides file")
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
}

func TestLoadWithPath_MissingFile(t *testing.T) {
	_, err := LoadWithPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoaderIsSet(t *testing.T) {
	t.Setenv("MAILER_PROVIDER_GCP_PROJECT_ID", "p")
	t.Setenv("MAILER_AUTH_JWT_SECRET", testSecret)

	loader := NewLoader()
	_, err := loader.Load()
	require.NoError(t, err)

	assert.True(t, loader.IsSet("auth.jwt_secret"))
	assert.True(t, loader.IsSet("probe.port"))
	assert.False(t, loader.IsSet("nonexistent.key"))
	assert.Equal(t, "p", loader.GetString("provider.gcp.project_id"))
}

func TestValidate_ShortSecret(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{Type: ProviderGCP, GCP: GCPConfig{ProjectID: "p"}},
		Auth:     AuthConfig{JWTSecret: "short"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32")
}

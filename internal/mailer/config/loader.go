package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "MAILER"

// secretBindings maps keys that have no default to their environment variables.
// Viper only unmarshals env values for keys it already knows about, so these are
// bound explicitly. Later names act as fallbacks.
var secretBindings = map[string][]string{
	"auth.jwt_secret":                  {"MAILER_AUTH_JWT_SECRET"},
	"api.admin_key":                    {"MAILER_API_ADMIN_KEY"},
	"provider.hetzner.api_token":       {"MAILER_PROVIDER_HETZNER_API_TOKEN", "HCLOUD_TOKEN"},
	"provider.gcp.project_id":          {"MAILER_PROVIDER_GCP_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
	"provider.gcp.credentials_file":    {"MAILER_PROVIDER_GCP_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"},
	"redis.password":                   {"MAILER_REDIS_PASSWORD"},
	"orchestrator.startup_script_path": {"MAILER_ORCHESTRATOR_STARTUP_SCRIPT_PATH"},
}

// Loader handles configuration loading from YAML files and environment variables
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// Load loads configuration from files and environment variables.
// Environment variables override values from the YAML file.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")

	for _, path := range getDefaultConfigPaths() {
		l.v.AddConfigPath(path)
	}

	if err := l.setupEnvironment(); err != nil {
		return nil, err
	}
	l.setDefaults()

	// Config file not found is OK, defaults and ENV still apply
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (l *Loader) setupEnvironment() error {
	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	for key, envs := range secretBindings {
		args := append([]string{key}, envs...)
		if err := l.v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values. Provider dependent values
// (machine types, zones, images) are filled in by Config.setDefaults.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "json")

	l.v.SetDefault("api.listen_addr", ":8080")
	l.v.SetDefault("api.cors_origins", []string{"*"})

	l.v.SetDefault("auth.token_ttl", "24h")
	l.v.SetDefault("auth.issuer", "mailer")

	l.v.SetDefault("db.path", "./data/mailer.db")
	l.v.SetDefault("db.max_open_conns", 25)
	l.v.SetDefault("db.max_idle_conns", 5)
	l.v.SetDefault("db.conn_max_lifetime", 300) // 5 minutes

	l.v.SetDefault("redis.addr", "")
	l.v.SetDefault("redis.db", 0)

	l.v.SetDefault("lease.backend", LeaseBackendMemory)
	l.v.SetDefault("lease.ttl", "5m")

	l.v.SetDefault("service.shutdown_timeout", "30s")

	l.v.SetDefault("provider.type", ProviderGCP)
	l.v.SetDefault("provider.gcp.network", "global/networks/default")

	l.v.SetDefault("placement.per_region_user_cap", 2)

	l.v.SetDefault("classes.ephemeral.cost", 100)
	l.v.SetDefault("classes.ephemeral.duration", "2h")
	l.v.SetDefault("classes.persistent.cost", 2000)
	l.v.SetDefault("classes.persistent.duration", "12h")

	l.v.SetDefault("probe.port", 5000)
	l.v.SetDefault("probe.path", "/")
	l.v.SetDefault("probe.attempt_timeout", "5s")
	l.v.SetDefault("probe.max_attempts", 30)
	l.v.SetDefault("probe.retry_delay", "10s")
	l.v.SetDefault("probe.recheck_attempts", 15)
	l.v.SetDefault("probe.recheck_delay", "5s")
	l.v.SetDefault("probe.direct_timeout", "3s")

	l.v.SetDefault("orchestrator.quiescence_window", "60s")
	l.v.SetDefault("orchestrator.ip_rotation_max_attempts", 10)
	l.v.SetDefault("orchestrator.provider_call_timeout", "5m")

	l.v.SetDefault("scheduler.expiry_schedule", "@every 5m")
	l.v.SetDefault("scheduler.reconcile_schedule", "@every 2m")

	l.v.SetDefault("circuit_breaker.failure_threshold", 5)
	l.v.SetDefault("circuit_breaker.reset_timeout", "60s")
	l.v.SetDefault("circuit_breaker.max_attempts", 3)

	l.v.SetDefault("firewall.ensure", true)
	l.v.SetDefault("firewall.ports", []int{22, 80, 443, 5000})
}

// GetString returns a raw configuration value, mostly for diagnostics.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// IsSet reports whether a key has a value from any source.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// LoadWithPath loads configuration from a specific file path
func LoadWithPath(configPath string) (*Config, error) {
	loader := NewLoader()
	loader.v.SetConfigFile(configPath)

	if err := loader.setupEnvironment(); err != nil {
		return nil, err
	}
	loader.setDefaults()

	if err := loader.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return loader.unmarshal()
}

// LoadFromEnv loads configuration only from environment variables
func LoadFromEnv() (*Config, error) {
	loader := NewLoader()
	if err := loader.setupEnvironment(); err != nil {
		return nil, err
	}
	loader.setDefaults()

	return loader.unmarshal()
}

func getDefaultConfigPaths() []string {
	return []string{
		"/etc/mailer",   // System-wide config
		"$HOME/.mailer", // User config
		".",             // Current directory
	}
}

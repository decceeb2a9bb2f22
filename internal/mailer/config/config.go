package config

import (
	"fmt"
	"time"
)

// Provider types accepted in provider.type.
const (
	ProviderHetzner = "hetzner"
	ProviderGCP     = "gcp"
)

// Lease backends accepted in lease.backend.
const (
	LeaseBackendMemory = "memory"
	LeaseBackendRedis  = "redis"
)

// Config defines the configuration for the mailer service.
type Config struct {
	Service        ServiceConfig        `mapstructure:"service"`
	Log            LogConfig            `mapstructure:"log"`
	API            APIConfig            `mapstructure:"api"`
	Auth           AuthConfig           `mapstructure:"auth"`
	DB             DBConfig             `mapstructure:"db"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Lease          LeaseConfig          `mapstructure:"lease"`
	Provider       ProviderConfig       `mapstructure:"provider"`
	Placement      PlacementConfig      `mapstructure:"placement"`
	Classes        ClassesConfig        `mapstructure:"classes"`
	Probe          ProbeConfig          `mapstructure:"probe"`
	Orchestrator   OrchestratorConfig   `mapstructure:"orchestrator"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Firewall       FirewallConfig       `mapstructure:"firewall"`
}

// ServiceConfig defines service-level configuration options.
type ServiceConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig defines the logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig defines the API server configuration.
type APIConfig struct {
	ListenAddr  string   `mapstructure:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// AdminKey guards the user provisioning endpoint (X-Admin-Key header).
	AdminKey string `mapstructure:"admin_key"`
}

// AuthConfig defines identity token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// DBConfig defines the database configuration.
type DBConfig struct {
	Path            string `mapstructure:"path"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
}

// RedisConfig defines the Redis connection used by the distributed lease backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LeaseConfig selects the per-server lease backend. TTL is the allowance for
// local work; each provider call made under a lease adds provider_call_timeout.
type LeaseConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ProviderConfig selects and configures the cloud backend.
type ProviderConfig struct {
	Type    string        `mapstructure:"type"`
	Hetzner HetznerConfig `mapstructure:"hetzner"`
	GCP     GCPConfig     `mapstructure:"gcp"`
}

// HetznerConfig defines the Hetzner provider configuration.
type HetznerConfig struct {
	APIToken string `mapstructure:"api_token"`
	Image    string `mapstructure:"image"`
}

// GCPConfig defines the Google Compute Engine provider configuration.
type GCPConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Image           string `mapstructure:"image"`
	Network         string `mapstructure:"network"`
}

// PlacementConfig lists the zones servers may be placed in.
type PlacementConfig struct {
	Zones            []string `mapstructure:"zones"`
	PerRegionUserCap int      `mapstructure:"per_region_user_cap"`
}

// ClassConfig describes cost, lease length and machine shape of a server class.
type ClassConfig struct {
	Cost        int64         `mapstructure:"cost"`
	Duration    time.Duration `mapstructure:"duration"`
	MachineType string        `mapstructure:"machine_type"`
	DiskSizeGB  int64         `mapstructure:"disk_size_gb"`
	DiskType    string        `mapstructure:"disk_type"`
}

// ClassesConfig holds per-class settings.
type ClassesConfig struct {
	Ephemeral  ClassConfig `mapstructure:"ephemeral"`
	Persistent ClassConfig `mapstructure:"persistent"`
}

// ProbeConfig defines readiness probe settings.
type ProbeConfig struct {
	Port            int           `mapstructure:"port"`
	Path            string        `mapstructure:"path"`
	AttemptTimeout  time.Duration `mapstructure:"attempt_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RecheckAttempts int           `mapstructure:"recheck_attempts"`
	RecheckDelay    time.Duration `mapstructure:"recheck_delay"`
	DirectTimeout   time.Duration `mapstructure:"direct_timeout"`
}

// OrchestratorConfig defines lifecycle orchestration settings.
type OrchestratorConfig struct {
	QuiescenceWindow      time.Duration `mapstructure:"quiescence_window"`
	IPRotationMaxAttempts int           `mapstructure:"ip_rotation_max_attempts"`
	StartupScriptPath     string        `mapstructure:"startup_script_path"`
	ProviderCallTimeout   time.Duration `mapstructure:"provider_call_timeout"`
}

// SchedulerConfig defines cron specs for background jobs.
type SchedulerConfig struct {
	ExpirySchedule    string `mapstructure:"expiry_schedule"`
	ReconcileSchedule string `mapstructure:"reconcile_schedule"`
}

// CircuitBreakerConfig defines circuit breaker configuration
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
}

// FirewallConfig controls ingress rule creation at startup.
type FirewallConfig struct {
	Ensure bool  `mapstructure:"ensure"`
	Ports  []int `mapstructure:"ports"`
}

// Validate validates the configuration for correctness and completeness
func (c *Config) Validate() error {
	switch c.Provider.Type {
	case ProviderHetzner:
		if c.Provider.Hetzner.APIToken == "" {
			return fmt.Errorf("provider.hetzner.api_token is required (set MAILER_PROVIDER_HETZNER_API_TOKEN or HCLOUD_TOKEN)")
		}
	case ProviderGCP:
		if c.Provider.GCP.ProjectID == "" {
			return fmt.Errorf("provider.gcp.project_id is required (set MAILER_PROVIDER_GCP_PROJECT_ID)")
		}
	case "":
		return fmt.Errorf("provider.type is required (hetzner or gcp)")
	default:
		return fmt.Errorf("invalid provider.type: %s (must be hetzner or gcp)", c.Provider.Type)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set MAILER_AUTH_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if c.Log.Level != "" && !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be trace, debug, info, warn, or error)", c.Log.Level)
	}
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log.format: %s (must be json or text)", c.Log.Format)
	}

	switch c.Lease.Backend {
	case "", LeaseBackendMemory:
	case LeaseBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when lease.backend is redis")
		}
	default:
		return fmt.Errorf("invalid lease.backend: %s (must be memory or redis)", c.Lease.Backend)
	}

	if c.Service.ShutdownTimeout > 0 && c.Service.ShutdownTimeout < time.Second {
		return fmt.Errorf("service.shutdown_timeout must be at least 1 second")
	}
	if c.Classes.Ephemeral.Cost < 0 || c.Classes.Persistent.Cost < 0 {
		return fmt.Errorf("classes.*.cost must not be negative")
	}
	if c.Placement.PerRegionUserCap < 0 {
		return fmt.Errorf("placement.per_region_user_cap must not be negative")
	}
	if c.Orchestrator.QuiescenceWindow > 0 && c.Orchestrator.QuiescenceWindow < time.Second {
		return fmt.Errorf("orchestrator.quiescence_window must be at least 1 second")
	}

	c.setDefaults()

	return nil
}

// setDefaults sets default values for configuration fields that are not set
func (c *Config) setDefaults() {
	if c.Service.ShutdownTimeout <= 0 {
		c.Service.ShutdownTimeout = 30 * time.Second
	}

	if c.DB.Path == "" {
		c.DB.Path = "./data/mailer.db"
	}
	if c.DB.MaxOpenConns <= 0 {
		c.DB.MaxOpenConns = 25
	}
	if c.DB.MaxIdleConns <= 0 {
		c.DB.MaxIdleConns = 5
	}
	if c.DB.ConnMaxLifetime <= 0 {
		c.DB.ConnMaxLifetime = 300
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if len(c.API.CORSOrigins) == 0 {
		c.API.CORSOrigins = []string{"*"}
	}

	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "mailer"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Lease.Backend == "" {
		c.Lease.Backend = LeaseBackendMemory
	}
	if c.Lease.TTL <= 0 {
		c.Lease.TTL = 5 * time.Minute
	}

	c.setProviderDefaults()

	if c.Probe.Port <= 0 {
		c.Probe.Port = 5000
	}
	if c.Probe.Path == "" {
		c.Probe.Path = "/"
	}
	if c.Probe.AttemptTimeout <= 0 {
		c.Probe.AttemptTimeout = 5 * time.Second
	}
	if c.Probe.MaxAttempts <= 0 {
		c.Probe.MaxAttempts = 30
	}
	if c.Probe.RetryDelay <= 0 {
		c.Probe.RetryDelay = 10 * time.Second
	}
	if c.Probe.RecheckAttempts <= 0 {
		c.Probe.RecheckAttempts = 15
	}
	if c.Probe.RecheckDelay <= 0 {
		c.Probe.RecheckDelay = 5 * time.Second
	}
	if c.Probe.DirectTimeout <= 0 {
		c.Probe.DirectTimeout = 3 * time.Second
	}

	if c.Orchestrator.QuiescenceWindow <= 0 {
		c.Orchestrator.QuiescenceWindow = 60 * time.Second
	}
	if c.Orchestrator.IPRotationMaxAttempts <= 0 {
		c.Orchestrator.IPRotationMaxAttempts = 10
	}
	if c.Orchestrator.ProviderCallTimeout <= 0 {
		c.Orchestrator.ProviderCallTimeout = 5 * time.Minute
	}

	if c.Scheduler.ExpirySchedule == "" {
		c.Scheduler.ExpirySchedule = "@every 5m"
	}
	if c.Scheduler.ReconcileSchedule == "" {
		c.Scheduler.ReconcileSchedule = "@every 2m"
	}

	if c.CircuitBreaker.FailureThreshold <= 0 {
		c.CircuitBreaker.FailureThreshold = 5
	}
	if c.CircuitBreaker.ResetTimeout <= 0 {
		c.CircuitBreaker.ResetTimeout = 60 * time.Second
	}
	if c.CircuitBreaker.MaxAttempts <= 0 {
		c.CircuitBreaker.MaxAttempts = 3
	}

	if len(c.Firewall.Ports) == 0 {
		c.Firewall.Ports = []int{22, 80, 443, 5000}
	}
}

// setProviderDefaults fills machine shapes and placement that depend on the provider.
func (c *Config) setProviderDefaults() {
	machineType, diskType := "e2-standard-2", "pd-ssd"
	zones := []string{"us-central1-a"}
	if c.Provider.Type == ProviderHetzner {
		machineType, diskType = "cx22", ""
		zones = []string{"nbg1"}
	}

	for _, class := range []*ClassConfig{&c.Classes.Ephemeral, &c.Classes.Persistent} {
		if class.MachineType == "" {
			class.MachineType = machineType
		}
		if class.DiskSizeGB <= 0 {
			class.DiskSizeGB = 10
		}
		if class.DiskType == "" {
			class.DiskType = diskType
		}
	}
	if c.Classes.Ephemeral.Duration <= 0 {
		c.Classes.Ephemeral.Duration = 2 * time.Hour
	}
	if c.Classes.Persistent.Duration <= 0 {
		c.Classes.Persistent.Duration = 12 * time.Hour
	}

	if len(c.Placement.Zones) == 0 {
		c.Placement.Zones = zones
	}
	if c.Placement.PerRegionUserCap <= 0 {
		c.Placement.PerRegionUserCap = 2
	}

	if c.Provider.Hetzner.Image == "" {
		c.Provider.Hetzner.Image = "ubuntu-22.04"
	}
	if c.Provider.GCP.Image == "" {
		c.Provider.GCP.Image = "projects/ubuntu-os-cloud/global/images/family/ubuntu-2204-lts"
	}
	if c.Provider.GCP.Network == "" {
		c.Provider.GCP.Network = "global/networks/default"
	}
}

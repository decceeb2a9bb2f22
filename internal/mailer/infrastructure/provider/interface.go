package provider

import (
	"context"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
)

// Adapter is the uniform capability surface over a cloud provider's compute API.
// Every call that wraps a long-running provider job blocks until it completes.
type Adapter interface {
	// Name returns the provider identifier (hetzner, gcp).
	Name() string
	// RegionOf maps a zone to the region floating addresses live in.
	RegionOf(zone string) string

	CreateInstance(ctx context.Context, spec InstanceSpec) (*Instance, error)
	GetInstanceState(ctx context.Context, instanceID, zone string) (server.ProviderState, error)
	// DeleteInstance is a no-op when the instance is already terminated or stopping.
	DeleteInstance(ctx context.Context, instanceID, zone string) error

	AllocateFloatingIP(ctx context.Context, region string) (*FloatingIP, error)
	// AssociateFloatingIP replaces the instance's external address with the floating one.
	AssociateFloatingIP(ctx context.Context, instanceID, zone, handle string) error
	// ReleaseFloatingIP is a no-op when the address no longer exists.
	ReleaseFloatingIP(ctx context.Context, region, handle string) error
	// FindFloatingIPByAddress returns ErrFloatingIPNotFound when no allocation holds address.
	FindFloatingIPByAddress(ctx context.Context, region, address string) (string, error)
}

// FirewallEnsurer is implemented by adapters that can open ingress ports for mailer instances.
type FirewallEnsurer interface {
	EnsureIngressRules(ctx context.Context, rules []PortRule) error
}

// InstanceSpec describes the VM to create
type InstanceSpec struct {
	Name          string
	Region        string
	Zone          string
	MachineType   string
	Image         string
	DiskSizeGB    int64
	DiskType      string
	StartupScript string
	Labels        map[string]string
}

// Instance is a created VM
type Instance struct {
	ID    string
	Name  string
	IP    string
	State server.ProviderState
}

// FloatingIP is an allocated address. Handle is the provider's reference to it.
type FloatingIP struct {
	Handle  string
	Address string
}

// PortRule is one ingress rule
type PortRule struct {
	Protocol string
	Port     int
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	compute "cloud.google.com/go/compute/apiv1"
	"cloud.google.com/go/compute/apiv1/computepb"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/proto"
)

const (
	gcpAccessConfigName = "External NAT"
	gcpNetworkInterface = "nic0"
	gcpFirewallName     = "molly-mailer-ingress"
	gcpNetworkTag       = "mollyserver"

	gcpReadBackAttempts = 5
	gcpReadBackDelay    = 2 * time.Second
)

// GCPAdapter implements Adapter for Google Compute Engine
type GCPAdapter struct {
	instances *compute.InstancesClient
	addresses *compute.AddressesClient
	firewalls *compute.FirewallsClient
	config    GCPConfig
	logger    *logger.Logger

	readBackAttempts int
	readBackDelay    time.Duration
}

// GCPConfig contains configuration for the GCP adapter
type GCPConfig struct {
	ProjectID       string
	CredentialsFile string
	Network         string
}

// NewGCPAdapter creates REST clients for instances, addresses and firewalls.
// Credentials come from the configured file, or application default credentials.
// extra is appended to the client options.
func NewGCPAdapter(ctx context.Context, config GCPConfig, log *logger.Logger, extra ...option.ClientOption) (*GCPAdapter, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("gcp project id is required")
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	opts = append(opts, extra...)

	instances, err := compute.NewInstancesRESTClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create instances client: %w", err)
	}
	addresses, err := compute.NewAddressesRESTClient(ctx, opts...)
	if err != nil {
		instances.Close()
		return nil, fmt.Errorf("failed to create addresses client: %w", err)
	}
	firewalls, err := compute.NewFirewallsRESTClient(ctx, opts...)
	if err != nil {
		instances.Close()
		addresses.Close()
		return nil, fmt.Errorf("failed to create firewalls client: %w", err)
	}

	return &GCPAdapter{
		instances: instances,
		addresses: addresses,
		firewalls: firewalls,
		config:    config,
		logger:    log.WithComponent("provider.gcp"),

		readBackAttempts: gcpReadBackAttempts,
		readBackDelay:    gcpReadBackDelay,
	}, nil
}

func (g *GCPAdapter) Name() string { return "gcp" }

// RegionOf strips the zone suffix: us-central1-a -> us-central1.
func (g *GCPAdapter) RegionOf(zone string) string {
	if i := strings.LastIndex(zone, "-"); i > 0 {
		return zone[:i]
	}
	return zone
}

// Close releases the underlying clients
func (g *GCPAdapter) Close() error {
	return errors.Join(g.instances.Close(), g.addresses.Close(), g.firewalls.Close())
}

// CreateInstance inserts a VM with an ephemeral external address and waits for the operation
func (g *GCPAdapter) CreateInstance(ctx context.Context, spec InstanceSpec) (inst *Instance, err error) {
	start := time.Now()
	defer func() { g.logger.ProviderCall(ctx, g.Name(), "create_instance", time.Since(start), err) }()

	resource := &computepb.Instance{
		Name:        proto.String(spec.Name),
		MachineType: proto.String(fmt.Sprintf("zones/%s/machineTypes/%s", spec.Zone, spec.MachineType)),
		Disks: []*computepb.AttachedDisk{{
			AutoDelete: proto.Bool(true),
			Boot:       proto.Bool(true),
			Type:       proto.String(computepb.AttachedDisk_PERSISTENT.String()),
			InitializeParams: &computepb.AttachedDiskInitializeParams{
				DiskSizeGb:  proto.Int64(spec.DiskSizeGB),
				DiskType:    proto.String(fmt.Sprintf("zones/%s/diskTypes/%s", spec.Zone, spec.DiskType)),
				SourceImage: proto.String(spec.Image),
			},
		}},
		NetworkInterfaces: []*computepb.NetworkInterface{{
			Network: proto.String(g.config.Network),
			AccessConfigs: []*computepb.AccessConfig{{
				Name: proto.String(gcpAccessConfigName),
				Type: proto.String(computepb.AccessConfig_ONE_TO_ONE_NAT.String()),
			}},
		}},
		Labels: spec.Labels,
		Tags:   &computepb.Tags{Items: []string{gcpNetworkTag}},
	}
	if spec.StartupScript != "" {
		resource.Metadata = &computepb.Metadata{
			Items: []*computepb.Items{{
				Key:   proto.String("startup-script"),
				Value: proto.String(spec.StartupScript),
			}},
		}
	}

	op, err := g.instances.Insert(ctx, &computepb.InsertInstanceRequest{
		Project:          g.config.ProjectID,
		Zone:             spec.Zone,
		InstanceResource: resource,
	})
	if err != nil {
		return nil, NewProvisioningFailed(g.Name(), err)
	}
	if err := g.wait(ctx, op, "create_instance"); err != nil {
		return &Instance{ID: spec.Name, Name: spec.Name}, NewProvisioningFailed(g.Name(), err)
	}

	created, err := g.readBack(ctx, spec.Zone, spec.Name)
	if err != nil {
		return &Instance{ID: spec.Name, Name: spec.Name}, NewProvisioningFailed(g.Name(), err)
	}
	return &Instance{
		ID:    spec.Name,
		Name:  spec.Name,
		IP:    externalIP(created),
		State: gcpState(created.GetStatus()),
	}, nil
}

// readBack reads a freshly created instance until it reports an external address.
func (g *GCPAdapter) readBack(ctx context.Context, zone, name string) (*computepb.Instance, error) {
	var lastErr error
	for attempt := range max(g.readBackAttempts, 1) {
		if attempt > 0 {
			select {
			case <-time.After(g.readBackDelay):
			case <-ctx.Done():
				return nil, errors.Join(lastErr, ctx.Err())
			}
		}

		inst, err := g.instances.Get(ctx, &computepb.GetInstanceRequest{
			Project:  g.config.ProjectID,
			Zone:     zone,
			Instance: name,
		})
		switch {
		case err != nil:
			lastErr = g.callError("get_instance", err)
		case externalIP(inst) == "":
			lastErr = fmt.Errorf("instance %s has no external address", name)
		default:
			return inst, nil
		}
		g.logger.WithContext(ctx).Debug("created instance not readable yet",
			slog.String("instance", name),
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))
	}
	return nil, lastErr
}

// GetInstanceState reads the instance status; a 404 means terminated
func (g *GCPAdapter) GetInstanceState(ctx context.Context, instanceID, zone string) (server.ProviderState, error) {
	inst, err := g.instances.Get(ctx, &computepb.GetInstanceRequest{
		Project:  g.config.ProjectID,
		Zone:     zone,
		Instance: instanceID,
	})
	if err != nil {
		if isGCPNotFound(err) {
			return server.ProviderTerminated, nil
		}
		return server.ProviderUnknown, g.callError("get_instance", err)
	}
	return gcpState(inst.GetStatus()), nil
}

// DeleteInstance deletes the instance unless it is already terminated or stopping
func (g *GCPAdapter) DeleteInstance(ctx context.Context, instanceID, zone string) (err error) {
	start := time.Now()
	defer func() { g.logger.ProviderCall(ctx, g.Name(), "delete_instance", time.Since(start), err) }()

	state, err := g.GetInstanceState(ctx, instanceID, zone)
	if err == nil && state.IsDeleting() {
		return nil
	}

	op, err := g.instances.Delete(ctx, &computepb.DeleteInstanceRequest{
		Project:  g.config.ProjectID,
		Zone:     zone,
		Instance: instanceID,
	})
	if err != nil {
		if isGCPNotFound(err) {
			return nil
		}
		return g.callError("delete_instance", err)
	}
	return g.wait(ctx, op, "delete_instance")
}

// AllocateFloatingIP reserves a regional static address
func (g *GCPAdapter) AllocateFloatingIP(ctx context.Context, region string) (fip *FloatingIP, err error) {
	start := time.Now()
	defer func() { g.logger.ProviderCall(ctx, g.Name(), "allocate_floating_ip", time.Since(start), err) }()

	name := AddressName()
	op, err := g.addresses.Insert(ctx, &computepb.InsertAddressRequest{
		Project: g.config.ProjectID,
		Region:  region,
		AddressResource: &computepb.Address{
			Name:   proto.String(name),
			Labels: map[string]string{LabelService: LabelServiceValue},
		},
	})
	if err != nil {
		return nil, g.callError("allocate_floating_ip", err)
	}
	if err := g.wait(ctx, op, "allocate_floating_ip"); err != nil {
		return nil, err
	}

	addr, err := g.addresses.Get(ctx, &computepb.GetAddressRequest{
		Project: g.config.ProjectID,
		Region:  region,
		Address: name,
	})
	if err != nil {
		return nil, g.callError("get_address", err)
	}

	return &FloatingIP{Handle: name, Address: addr.GetAddress()}, nil
}

// AssociateFloatingIP detaches the current external access config and attaches
// the reserved address in its place.
func (g *GCPAdapter) AssociateFloatingIP(ctx context.Context, instanceID, zone, handle string) (err error) {
	start := time.Now()
	defer func() { g.logger.ProviderCall(ctx, g.Name(), "associate_floating_ip", time.Since(start), err) }()

	addr, err := g.addresses.Get(ctx, &computepb.GetAddressRequest{
		Project: g.config.ProjectID,
		Region:  g.RegionOf(zone),
		Address: handle,
	})
	if err != nil {
		return g.callError("get_address", err)
	}

	op, err := g.instances.DeleteAccessConfig(ctx, &computepb.DeleteAccessConfigInstanceRequest{
		Project:          g.config.ProjectID,
		Zone:             zone,
		Instance:         instanceID,
		AccessConfig:     gcpAccessConfigName,
		NetworkInterface: gcpNetworkInterface,
	})
	if err != nil {
		if !isGCPNotFound(err) {
			return g.callError("delete_access_config", err)
		}
	} else if err := g.wait(ctx, op, "delete_access_config"); err != nil {
		return err
	}

	op, err = g.instances.AddAccessConfig(ctx, &computepb.AddAccessConfigInstanceRequest{
		Project:          g.config.ProjectID,
		Zone:             zone,
		Instance:         instanceID,
		NetworkInterface: gcpNetworkInterface,
		AccessConfigResource: &computepb.AccessConfig{
			Name:  proto.String(gcpAccessConfigName),
			Type:  proto.String(computepb.AccessConfig_ONE_TO_ONE_NAT.String()),
			NatIP: proto.String(addr.GetAddress()),
		},
	})
	if err != nil {
		return g.callError("add_access_config", err)
	}
	return g.wait(ctx, op, "add_access_config")
}

// ReleaseFloatingIP deletes the reserved address; 404 is ignored
func (g *GCPAdapter) ReleaseFloatingIP(ctx context.Context, region, handle string) (err error) {
	start := time.Now()
	defer func() { g.logger.ProviderCall(ctx, g.Name(), "release_floating_ip", time.Since(start), err) }()

	op, err := g.addresses.Delete(ctx, &computepb.DeleteAddressRequest{
		Project: g.config.ProjectID,
		Region:  region,
		Address: handle,
	})
	if err != nil {
		if isGCPNotFound(err) {
			return nil
		}
		return g.callError("release_floating_ip", err)
	}
	return g.wait(ctx, op, "release_floating_ip")
}

// FindFloatingIPByAddress lists reserved addresses filtered by IP value
func (g *GCPAdapter) FindFloatingIPByAddress(ctx context.Context, region, address string) (string, error) {
	it := g.addresses.List(ctx, &computepb.ListAddressesRequest{
		Project: g.config.ProjectID,
		Region:  region,
		Filter:  proto.String(fmt.Sprintf("address = %q", address)),
	})
	for {
		addr, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return "", ErrFloatingIPNotFound
		}
		if err != nil {
			return "", g.callError("list_addresses", err)
		}
		if addr.GetAddress() == address {
			return addr.GetName(), nil
		}
	}
}

// EnsureIngressRules creates the mailer firewall on the configured network
// unless one with the same name exists. It targets the instance network tag.
func (g *GCPAdapter) EnsureIngressRules(ctx context.Context, rules []PortRule) error {
	_, err := g.firewalls.Get(ctx, &computepb.GetFirewallRequest{
		Project:  g.config.ProjectID,
		Firewall: gcpFirewallName,
	})
	if err == nil {
		return nil
	}
	if !isGCPNotFound(err) {
		return g.callError("get_firewall", err)
	}

	byProtocol := map[string][]string{}
	var protocols []string
	for _, r := range rules {
		if _, ok := byProtocol[r.Protocol]; !ok {
			protocols = append(protocols, r.Protocol)
		}
		byProtocol[r.Protocol] = append(byProtocol[r.Protocol], strconv.Itoa(r.Port))
	}
	allowed := make([]*computepb.Allowed, 0, len(protocols))
	for _, p := range protocols {
		allowed = append(allowed, &computepb.Allowed{
			IPProtocol: proto.String(p),
			Ports:      byProtocol[p],
		})
	}

	op, err := g.firewalls.Insert(ctx, &computepb.InsertFirewallRequest{
		Project: g.config.ProjectID,
		FirewallResource: &computepb.Firewall{
			Name:         proto.String(gcpFirewallName),
			Network:      proto.String(g.config.Network),
			Direction:    proto.String(computepb.Firewall_INGRESS.String()),
			Allowed:      allowed,
			SourceRanges: []string{"0.0.0.0/0"},
			TargetTags:   []string{gcpNetworkTag},
		},
	})
	if err != nil {
		return g.callError("create_firewall", err)
	}
	return g.wait(ctx, op, "create_firewall")
}

// wait blocks until op is done and surfaces the operation's own error messages verbatim
func (g *GCPAdapter) wait(ctx context.Context, op *compute.Operation, call string) error {
	if err := op.Wait(ctx); err != nil {
		return g.callError(call, err)
	}
	if opErr := op.Proto().GetError(); opErr != nil && len(opErr.GetErrors()) > 0 {
		messages := make([]string, 0, len(opErr.GetErrors()))
		for _, e := range opErr.GetErrors() {
			messages = append(messages, e.GetMessage())
		}
		return NewOperationError(g.Name(), call, messages)
	}
	return nil
}

func (g *GCPAdapter) callError(call string, err error) error {
	return NewCallError(g.Name(), call, isGCPTransient(err), err)
}

func isGCPNotFound(err error) bool {
	var apiErr *apierror.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPCode() == 404
}

func isGCPTransient(err error) bool {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.HTTPCode()
		return code == 429 || code >= 500
	}
	return isNetworkTransient(err)
}

func gcpState(status string) server.ProviderState {
	switch status {
	case "PROVISIONING", "STAGING", "REPAIRING":
		return server.ProviderPending
	case "RUNNING":
		return server.ProviderRunning
	case "STOPPING", "SUSPENDING":
		return server.ProviderStopping
	// TERMINATED is a stopped instance that still exists
	case "STOPPED", "SUSPENDED", "TERMINATED":
		return server.ProviderStopped
	default:
		return server.ProviderUnknown
	}
}

func externalIP(inst *computepb.Instance) string {
	for _, nic := range inst.GetNetworkInterfaces() {
		for _, ac := range nic.GetAccessConfigs() {
			if ip := ac.GetNatIP(); ip != "" {
				return ip
			}
		}
	}
	return ""
}

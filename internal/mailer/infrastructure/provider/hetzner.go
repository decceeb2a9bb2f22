package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

const hetznerFirewallName = "molly-mailer-ingress"

// HetznerAdapter implements Adapter for Hetzner Cloud
type HetznerAdapter struct {
	client *hcloud.Client
	config HetznerConfig
	logger *logger.Logger
}

// HetznerConfig contains configuration for the Hetzner adapter
type HetznerConfig struct {
	APIToken string
	// Endpoint overrides the API base URL. Tests point it at httptest.
	Endpoint string
	// PollInterval controls how often running actions are polled.
	PollInterval time.Duration
}

// NewHetznerAdapter creates a new Hetzner adapter
func NewHetznerAdapter(config HetznerConfig, log *logger.Logger) (*HetznerAdapter, error) {
	if config.APIToken == "" {
		return nil, fmt.Errorf("hetzner API token is required")
	}

	opts := []hcloud.ClientOption{
		hcloud.WithToken(config.APIToken),
		hcloud.WithApplication("mailer", "1.0"),
	}
	if config.Endpoint != "" {
		opts = append(opts, hcloud.WithEndpoint(config.Endpoint))
	}
	if config.PollInterval > 0 {
		opts = append(opts, hcloud.WithPollOpts(hcloud.PollOpts{
			BackoffFunc: hcloud.ConstantBackoff(config.PollInterval),
		}))
	}

	return &HetznerAdapter{
		client: hcloud.NewClient(opts...),
		config: config,
		logger: log.WithComponent("provider.hetzner"),
	}, nil
}

func (h *HetznerAdapter) Name() string { return "hetzner" }

// RegionOf returns the zone unchanged: Hetzner floating IPs are homed in a location.
func (h *HetznerAdapter) RegionOf(zone string) string { return zone }

// CreateInstance creates a server and waits for its create actions
func (h *HetznerAdapter) CreateInstance(ctx context.Context, spec InstanceSpec) (inst *Instance, err error) {
	start := time.Now()
	defer func() { h.logger.ProviderCall(ctx, h.Name(), "create_instance", time.Since(start), err) }()

	if spec.DiskSizeGB > 0 || spec.DiskType != "" {
		h.logger.WithContext(ctx).Debug("disk size and type are implied by the hetzner server type",
			slog.Int64("disk_size_gb", spec.DiskSizeGB),
			slog.String("disk_type", spec.DiskType),
			slog.String("server_type", spec.MachineType))
	}

	result, _, err := h.client.Server.Create(ctx, hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: &hcloud.ServerType{Name: spec.MachineType},
		Image:      &hcloud.Image{Name: spec.Image},
		Location:   &hcloud.Location{Name: spec.Zone},
		PublicNet: &hcloud.ServerCreatePublicNet{
			EnableIPv4: true,
			EnableIPv6: false,
		},
		UserData: spec.StartupScript,
		Labels:   spec.Labels,
	})
	if err != nil {
		return nil, NewProvisioningFailed(h.Name(), err)
	}

	actions := append([]*hcloud.Action{result.Action}, result.NextActions...)
	if err := h.client.Action.WaitFor(ctx, nonNilActions(actions)...); err != nil {
		return &Instance{ID: strconv.FormatInt(result.Server.ID, 10), Name: spec.Name},
			NewProvisioningFailed(h.Name(), err)
	}

	inst = &Instance{
		ID:    strconv.FormatInt(result.Server.ID, 10),
		Name:  result.Server.Name,
		State: server.ProviderPending,
	}
	if ip := result.Server.PublicNet.IPv4.IP; ip != nil {
		inst.IP = ip.String()
	}
	return inst, nil
}

// GetInstanceState maps the hcloud server status onto ProviderState
func (h *HetznerAdapter) GetInstanceState(ctx context.Context, instanceID, _ string) (server.ProviderState, error) {
	id, err := parseHetznerID(instanceID)
	if err != nil {
		return server.ProviderUnknown, err
	}

	srv, _, err := h.client.Server.GetByID(ctx, id)
	if err != nil {
		return server.ProviderUnknown, h.callError("get_instance", err)
	}
	if srv == nil {
		return server.ProviderTerminated, nil
	}
	return hetznerState(srv.Status), nil
}

// DeleteInstance deletes the server. Not found and already deleting are no-ops.
// instanceID may also be the server name, as left by a create that failed
// before the server id was known.
func (h *HetznerAdapter) DeleteInstance(ctx context.Context, instanceID, zone string) (err error) {
	start := time.Now()
	defer func() { h.logger.ProviderCall(ctx, h.Name(), "delete_instance", time.Since(start), err) }()

	id, err := h.resolveServerID(ctx, instanceID)
	if err != nil || id == 0 {
		return err
	}

	state, err := h.GetInstanceState(ctx, strconv.FormatInt(id, 10), zone)
	if err == nil && state.IsDeleting() {
		return nil
	}

	result, _, err := h.client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: id})
	if err != nil {
		if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			return nil
		}
		return h.callError("delete_instance", err)
	}
	if result != nil && result.Action != nil {
		if err := h.client.Action.WaitFor(ctx, result.Action); err != nil {
			return h.callError("delete_instance", err)
		}
	}
	return nil
}

// AllocateFloatingIP creates an IPv4 floating IP homed in region
func (h *HetznerAdapter) AllocateFloatingIP(ctx context.Context, region string) (fip *FloatingIP, err error) {
	start := time.Now()
	defer func() { h.logger.ProviderCall(ctx, h.Name(), "allocate_floating_ip", time.Since(start), err) }()

	result, _, err := h.client.FloatingIP.Create(ctx, hcloud.FloatingIPCreateOpts{
		Type:         hcloud.FloatingIPTypeIPv4,
		HomeLocation: &hcloud.Location{Name: region},
		Name:         hcloud.Ptr(AddressName()),
		Labels:       map[string]string{LabelService: LabelServiceValue},
	})
	if err != nil {
		return nil, h.callError("allocate_floating_ip", err)
	}
	if result.Action != nil {
		if err := h.client.Action.WaitFor(ctx, result.Action); err != nil {
			return nil, h.callError("allocate_floating_ip", err)
		}
	}

	return &FloatingIP{
		Handle:  strconv.FormatInt(result.FloatingIP.ID, 10),
		Address: result.FloatingIP.IP.String(),
	}, nil
}

// AssociateFloatingIP assigns the floating IP to the server, moving it off any
// previous holder. The startup script binds it on the guest.
func (h *HetznerAdapter) AssociateFloatingIP(ctx context.Context, instanceID, _ string, handle string) (err error) {
	start := time.Now()
	defer func() { h.logger.ProviderCall(ctx, h.Name(), "associate_floating_ip", time.Since(start), err) }()

	serverID, err := parseHetznerID(instanceID)
	if err != nil {
		return err
	}
	fipID, err := parseHetznerID(handle)
	if err != nil {
		return err
	}

	action, _, err := h.client.FloatingIP.Assign(ctx, &hcloud.FloatingIP{ID: fipID}, &hcloud.Server{ID: serverID})
	if err != nil {
		return h.callError("associate_floating_ip", err)
	}
	if err := h.client.Action.WaitFor(ctx, action); err != nil {
		return h.callError("associate_floating_ip", err)
	}
	return nil
}

// ReleaseFloatingIP deletes the floating IP; missing IPs are ignored
func (h *HetznerAdapter) ReleaseFloatingIP(ctx context.Context, _ string, handle string) (err error) {
	start := time.Now()
	defer func() { h.logger.ProviderCall(ctx, h.Name(), "release_floating_ip", time.Since(start), err) }()

	id, err := parseHetznerID(handle)
	if err != nil {
		return err
	}

	if _, err := h.client.FloatingIP.Delete(ctx, &hcloud.FloatingIP{ID: id}); err != nil {
		if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
			return nil
		}
		return h.callError("release_floating_ip", err)
	}
	return nil
}

// FindFloatingIPByAddress scans this project's floating IPs for address
func (h *HetznerAdapter) FindFloatingIPByAddress(ctx context.Context, region, address string) (string, error) {
	want := net.ParseIP(address)
	if want == nil {
		return "", ErrFloatingIPNotFound
	}

	fips, err := h.client.FloatingIP.All(ctx)
	if err != nil {
		return "", h.callError("list_floating_ips", err)
	}
	for _, fip := range fips {
		if fip.IP.Equal(want) {
			return strconv.FormatInt(fip.ID, 10), nil
		}
	}
	return "", ErrFloatingIPNotFound
}

// EnsureIngressRules creates the mailer firewall unless it already exists.
// It applies to every server carrying the service label.
func (h *HetznerAdapter) EnsureIngressRules(ctx context.Context, rules []PortRule) error {
	existing, _, err := h.client.Firewall.GetByName(ctx, hetznerFirewallName)
	if err != nil {
		return h.callError("get_firewall", err)
	}
	if existing != nil {
		return nil
	}

	_, anyV4, _ := net.ParseCIDR("0.0.0.0/0")
	fwRules := make([]hcloud.FirewallRule, 0, len(rules))
	for _, r := range rules {
		fwRules = append(fwRules, hcloud.FirewallRule{
			Direction: hcloud.FirewallRuleDirectionIn,
			Protocol:  hetznerProtocol(r.Protocol),
			Port:      hcloud.Ptr(strconv.Itoa(r.Port)),
			SourceIPs: []net.IPNet{*anyV4},
		})
	}

	result, _, err := h.client.Firewall.Create(ctx, hcloud.FirewallCreateOpts{
		Name:   hetznerFirewallName,
		Labels: map[string]string{LabelService: LabelServiceValue},
		Rules:  fwRules,
		ApplyTo: []hcloud.FirewallResource{{
			Type: hcloud.FirewallResourceTypeLabelSelector,
			LabelSelector: &hcloud.FirewallResourceLabelSelector{
				Selector: LabelService + "=" + LabelServiceValue,
			},
		}},
	})
	if err != nil {
		return h.callError("create_firewall", err)
	}
	if len(result.Actions) > 0 {
		if err := h.client.Action.WaitFor(ctx, result.Actions...); err != nil {
			return h.callError("create_firewall", err)
		}
	}
	return nil
}

func (h *HetznerAdapter) callError(call string, err error) error {
	return NewCallError(h.Name(), call, isHetznerTransient(err), err)
}

func isHetznerTransient(err error) bool {
	return hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded) ||
		hcloud.IsError(err, hcloud.ErrorCodeResourceUnavailable) ||
		hcloud.IsError(err, hcloud.ErrorCodeServiceError) ||
		isNetworkTransient(err)
}

func hetznerState(status hcloud.ServerStatus) server.ProviderState {
	switch status {
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusStarting,
		hcloud.ServerStatusMigrating, hcloud.ServerStatusRebuilding:
		return server.ProviderPending
	case hcloud.ServerStatusRunning:
		return server.ProviderRunning
	case hcloud.ServerStatusStopping, hcloud.ServerStatusDeleting:
		return server.ProviderStopping
	case hcloud.ServerStatusOff:
		return server.ProviderStopped
	default:
		return server.ProviderUnknown
	}
}

func hetznerProtocol(p string) hcloud.FirewallRuleProtocol {
	if p == "udp" {
		return hcloud.FirewallRuleProtocolUDP
	}
	return hcloud.FirewallRuleProtocolTCP
}

// resolveServerID returns the id for a numeric instanceID, or looks the server
// up by name otherwise. Zero means no such server exists.
func (h *HetznerAdapter) resolveServerID(ctx context.Context, instanceID string) (int64, error) {
	if id, err := strconv.ParseInt(instanceID, 10, 64); err == nil {
		return id, nil
	}
	srv, _, err := h.client.Server.GetByName(ctx, instanceID)
	if err != nil {
		return 0, h.callError("get_instance_by_name", err)
	}
	if srv == nil {
		return 0, nil
	}
	return srv.ID, nil
}

func parseHetznerID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hetzner id %q: %w", s, err)
	}
	return id, nil
}

func nonNilActions(actions []*hcloud.Action) []*hcloud.Action {
	out := actions[:0]
	for _, a := range actions {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

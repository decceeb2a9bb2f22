package server

// Status represents the lifecycle state of a mailer server
type Status string

const (
	StatusStarting           Status = "starting"
	StatusReady              Status = "ready"
	StatusServiceUnavailable Status = "service_unavailable"
	StatusError              Status = "error"
	StatusRotatingIP         Status = "rotating_ip"
	StatusStopped            Status = "stopped"
	StatusTerminated         Status = "terminated"

	// View-only values, never persisted.
	StatusRechecking Status = "rechecking"
	StatusUnknown    Status = "unknown"
)

// IsValid reports whether s may be persisted.
func (s Status) IsValid() bool {
	switch s {
	case StatusStarting, StatusReady, StatusServiceUnavailable, StatusError,
		StatusRotatingIP, StatusStopped, StatusTerminated:
		return true
	default:
		return false
	}
}

// IsViewOnly reports whether s only ever appears in responses.
func (s Status) IsViewOnly() bool {
	return s == StatusRechecking || s == StatusUnknown
}

// CanTransitionTo checks if the current status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	if !target.IsValid() {
		return false
	}
	// probe results may be re-applied
	if s == target && target.IsProbeResult() {
		return true
	}

	switch s {
	case StatusStarting:
		return target == StatusReady || target == StatusServiceUnavailable || target == StatusError ||
			target == StatusStopped || target == StatusTerminated
	case StatusReady:
		return target == StatusRotatingIP || target == StatusStarting || target == StatusStopped ||
			target == StatusTerminated || target == StatusServiceUnavailable || target == StatusError
	case StatusRotatingIP:
		return target == StatusReady || target == StatusServiceUnavailable || target == StatusError ||
			target == StatusStopped || target == StatusTerminated
	case StatusServiceUnavailable:
		return target == StatusReady || target == StatusError || target == StatusStarting ||
			target == StatusRotatingIP || target == StatusStopped || target == StatusTerminated
	case StatusError:
		return target == StatusReady || target == StatusServiceUnavailable || target == StatusStarting ||
			target == StatusStopped || target == StatusTerminated
	case StatusStopped, StatusTerminated:
		return false
	default:
		return false
	}
}

// IsTerminal returns true if the status is a terminal state
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusTerminated
}

// IsTransitioning reports states that wait on a readiness probe.
func (s Status) IsTransitioning() bool {
	return s == StatusStarting || s == StatusRotatingIP
}

// IsProbeResult reports states written by a finished readiness probe.
func (s Status) IsProbeResult() bool {
	return s == StatusReady || s == StatusServiceUnavailable || s == StatusError
}

func (s Status) String() string {
	return string(s)
}

// ProviderState is the instance state reported by the cloud provider
type ProviderState string

const (
	ProviderPending    ProviderState = "pending"
	ProviderRunning    ProviderState = "running"
	ProviderStopping   ProviderState = "stopping"
	ProviderStopped    ProviderState = "stopped"
	ProviderTerminated ProviderState = "terminated"
	ProviderUnknown    ProviderState = "unknown"
)

// IsGone reports whether the instance is shutting down or already gone.
func (p ProviderState) IsGone() bool {
	return p == ProviderStopping || p == ProviderStopped || p == ProviderTerminated
}

// IsDeleting reports whether the instance is already on its way out, so a
// delete request would be redundant.
func (p ProviderState) IsDeleting() bool {
	return p == ProviderStopping || p == ProviderTerminated
}

// IsPendingLike reports whether the instance is still coming up.
func (p ProviderState) IsPendingLike() bool {
	return p == ProviderPending
}

func (p ProviderState) String() string {
	return string(p)
}

package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"golang.org/x/sync/singleflight"
)

// ProbeFunc is a background probe. It reports readiness.
type ProbeFunc func(ctx context.Context) bool

// Registry tracks in-flight background probes keyed by server id. A second
// Run for an id that is still probing attaches to the running probe.
type Registry struct {
	group  singleflight.Group
	base   context.Context
	logger *logger.Logger

	mu      sync.Mutex
	cancels map[string]*inflight
	closed  bool
	wg      sync.WaitGroup
}

type inflight struct {
	cancel context.CancelFunc
}

// NewRegistry creates a registry whose probes derive from base. Cancelling
// base stops every probe.
func NewRegistry(base context.Context, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{
		base:    base,
		logger:  log.WithComponent("health.registry"),
		cancels: make(map[string]*inflight),
	}
}

// Run starts fn for serverID unless a probe is already running, in which
// case the caller shares its result. started reports whether fn was launched.
func (r *Registry) Run(serverID string, fn ProbeFunc) (result <-chan bool, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return closedResult(false), false
	}

	if _, ok := r.cancels[serverID]; !ok {
		// Drop any finished call singleflight has not yet forgotten
		r.group.Forget(serverID)

		ctx, cancel := context.WithCancel(r.base)
		entry := &inflight{cancel: cancel}
		r.cancels[serverID] = entry
		r.wg.Add(1)
		started = true

		ch := r.group.DoChan(serverID, func() (any, error) {
			defer r.finish(serverID, entry)
			return r.safeRun(ctx, serverID, fn), nil
		})
		return forward(ch), started
	}

	ch := r.group.DoChan(serverID, func() (any, error) {
		// Only reached if the tracked probe finished between checks
		return false, nil
	})
	return forward(ch), false
}

// InFlight reports whether a probe for serverID is running
func (r *Registry) InFlight(serverID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[serverID]
	return ok
}

// Cancel stops the probe for serverID, if any
func (r *Registry) Cancel(serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.cancels[serverID]; ok {
		e.cancel()
	}
}

// CancelAll stops every running probe
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.cancels {
		e.cancel()
	}
}

// Count returns the number of running probes
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Close refuses new probes and cancels running ones
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.CancelAll()
}

// Wait blocks until every probe has returned or ctx is done
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) safeRun(ctx context.Context, serverID string, fn ProbeFunc) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorCtx(ctx, "probe panicked", fmt.Errorf("panic: %v", rec),
				slog.String("server_id", serverID))
			ok = false
		}
	}()
	return fn(ctx)
}

func (r *Registry) finish(serverID string, entry *inflight) {
	entry.cancel()
	r.mu.Lock()
	if r.cancels[serverID] == entry {
		delete(r.cancels, serverID)
	}
	r.mu.Unlock()
	r.wg.Done()
}

func forward(ch <-chan singleflight.Result) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		res := <-ch
		ok, _ := res.Val.(bool)
		out <- ok
		close(out)
	}()
	return out
}

func closedResult(v bool) <-chan bool {
	out := make(chan bool, 1)
	out <- v
	close(out)
	return out
}

package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	DefaultPort           = 5000
	DefaultPath           = "/"
	DefaultAttemptTimeout = 5 * time.Second
)

// ErrNoAddress is returned when there is nothing to probe yet
var ErrNoAddress = errors.New("no address to probe")

// HealthChecker checks the mail service on a server address once.
type HealthChecker interface {
	Check(ctx context.Context, address string) error
}

// HTTPCheckerConfig configures the probed endpoint.
type HTTPCheckerConfig struct {
	Port           int
	Path           string
	AttemptTimeout time.Duration
}

// NewHTTPHealthChecker creates a checker that expects 200 from GET http://<addr>:<port><path>.
func NewHTTPHealthChecker(cfg HTTPCheckerConfig) HealthChecker {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}

	return &httpHealthChecker{
		client: &http.Client{
			Timeout: cfg.AttemptTimeout,
			// The mail service answers directly; a redirect is not readiness
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		port: strconv.Itoa(cfg.Port),
		path: cfg.Path,
	}
}

type httpHealthChecker struct {
	client *http.Client
	port   string
	path   string
}

func (h *httpHealthChecker) Check(ctx context.Context, address string) error {
	if address == "" {
		return ErrNoAddress
	}

	url := "http://" + net.JoinHostPort(address, h.port) + h.path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status code: %d", resp.StatusCode)
	}

	return nil
}

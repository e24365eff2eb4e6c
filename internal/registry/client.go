package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
	"nimbus/pkg/retry"
)

// Client talks to a remote discovery directory. Lookups go through a circuit
// breaker so a dead registry fails fast instead of stalling every caller.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger
}

func NewClient(baseURL string, log logger.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry-lookup",
		MaxRequests: 3,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		breaker: breaker,
		logger:  log,
	}
}

func (c *Client) Lookup(ctx context.Context, serviceName string) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.lookup(ctx, serviceName)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", pkgerrors.ErrServiceUnavailable.WithCause(err).
				WithDetail("message", "registry lookups suspended")
		}
		return "", err
	}
	return result.(string), nil
}

func (c *Client) lookup(ctx context.Context, serviceName string) (string, error) {
	url := fmt.Sprintf("%s/services/%s", c.baseURL, serviceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithDetail("message", "registry unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("service %q not registered", serviceName))
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.ErrServiceUnavailable.
			WithDetail("message", fmt.Sprintf("registry returned status %d", resp.StatusCode))
	}

	var lookupResp LookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookupResp); err != nil {
		return "", fmt.Errorf("decode lookup response: %w", err)
	}
	return lookupResp.ServiceURL, nil
}

func (c *Client) Register(ctx context.Context, serviceName, serviceURL string) error {
	body, err := json.Marshal(RegisterRequest{ServiceName: serviceName, ServiceURL: serviceURL})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithDetail("message", "registry unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}
	return nil
}

// RegisterWithRetry announces this service with exponential backoff. A
// registry that never comes up is logged and tolerated; the service still
// serves traffic, it is just not discoverable.
func (c *Client) RegisterWithRetry(ctx context.Context, serviceName, serviceURL string, policy retry.Policy) error {
	err := retry.RetryWithCallback(ctx, policy, func() error {
		return c.Register(ctx, serviceName, serviceURL)
	}, func(attempt int, err error, nextDelay time.Duration) {
		c.logger.WarnwCtx(ctx, "Registry registration failed, retrying",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Could not register with service registry",
			"registered_service", serviceName,
			"error", err,
		)
		return err
	}

	c.logger.InfowCtx(ctx, "Registered with service registry",
		"registered_service", serviceName,
		"address", serviceURL,
	)
	return nil
}

func (c *Client) HealthURL() string {
	return c.baseURL + "/health"
}

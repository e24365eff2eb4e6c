package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nimbus/internal/logger"
	"nimbus/pkg/metrics"
)

// Connection-level headers must not be relayed between hops.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder relays a client request to the backend resolved for the matched
// route. It performs no retries: a failed upstream call is surfaced
// immediately as a 502 so the caller owns the retry decision.
type Forwarder struct {
	table    *RouteTable
	resolver *Resolver
	client   *http.Client
	logger   logger.Logger
}

func NewForwarder(table *RouteTable, resolver *Resolver, log logger.Logger) *Forwarder {
	return &Forwarder{
		table:    table,
		resolver: resolver,
		// Per-request deadlines come from the route rule, not the client.
		client: &http.Client{},
		logger: log,
	}
}

func (f *Forwarder) Forward(c *gin.Context) {
	path := c.Request.URL.Path

	rule, ok := f.table.Match(path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Route not found",
			"path":      path,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	target, err := f.resolver.Resolve(c.Request.Context(), rule.Service)
	if err != nil {
		f.logger.ErrorwCtx(c.Request.Context(), "Failed to resolve target service",
			"target_service", rule.Service,
			"error", err,
		)
		f.serviceUnavailable(c, rule.Service)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), rule.Timeout)
	defer cancel()

	outURL := target + rule.RewritePath(path)
	if raw := c.Request.URL.RawQuery; raw != "" {
		outURL += "?" + raw
	}

	req, err := http.NewRequestWithContext(ctx, c.Request.Method, outURL, c.Request.Body)
	if err != nil {
		f.logger.ErrorwCtx(ctx, "Failed to build upstream request",
			"target_service", rule.Service,
			"error", err,
		)
		f.serviceUnavailable(c, rule.Service)
		return
	}
	copyHeaders(req.Header, c.Request.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		// Connection refused, timeout, resolve failure: all collapse to a
		// uniform 502 so transport errors never reach the caller raw.
		f.logger.ErrorwCtx(ctx, "Upstream call failed",
			"method", c.Request.Method,
			"path", path,
			"target_service", rule.Service,
			"error", err,
		)
		metrics.GatewayForwardsTotal.WithLabelValues(rule.Service, "upstream_error").Inc()
		f.serviceUnavailable(c, rule.Service)
		return
	}
	defer resp.Body.Close()

	copyHeaders(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		f.logger.WarnwCtx(ctx, "Error relaying upstream response body",
			"target_service", rule.Service,
			"error", err,
		)
	}

	f.logger.InfowCtx(ctx, "Forwarded request",
		"method", c.Request.Method,
		"path", path,
		"target_service", rule.Service,
		"status", resp.StatusCode,
	)
	metrics.GatewayForwardsTotal.WithLabelValues(rule.Service, strconv.Itoa(resp.StatusCode)).Inc()
}

func (f *Forwarder) serviceUnavailable(c *gin.Context, serviceName string) {
	c.JSON(http.StatusBadGateway, gin.H{
		"error":     fmt.Sprintf("%s unavailable", serviceName),
		"message":   "Service is not responding",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
	for _, key := range hopByHopHeaders {
		dst.Del(key)
	}
}
